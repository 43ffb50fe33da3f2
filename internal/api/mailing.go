package api

import (
	"context"
	"net/http"
	"time"
)

type MailProvider string

const (
	MailProviderSMTP   MailProvider = "SMTP"
	MailProviderResend MailProvider = "RESEND"
)

type MailingConfigInput struct {
	Provider     MailProvider `json:"provider"`
	FromAddress  string       `json:"fromAddress"`
	FromName     string       `json:"fromName,omitempty"`
	SMTPHost     string       `json:"smtpHost,omitempty"`
	SMTPPort     int          `json:"smtpPort,omitempty"`
	SMTPUsername string       `json:"smtpUsername,omitempty"`
	SMTPPassword string       `json:"smtpPassword,omitempty"`
	SMTPSecure   bool         `json:"smtpSecure,omitempty"`
	ResendAPIKey string       `json:"resendApiKey,omitempty"`
	IsActive     *bool        `json:"isActive,omitempty"`
}

// MailingConfig never carries secrets back.
type MailingConfig struct {
	ID             string       `json:"id"`
	OrganizationID string       `json:"organizationId"`
	ConfigType     MailProvider `json:"configType"`
	Resend         *struct {
		FromAddress string `json:"fromAddress"`
		FromName    string `json:"fromName"`
	} `json:"ResendConfig,omitempty"`
	SMTP *struct {
		Host     string `json:"host"`
		Port     int    `json:"port"`
		Username string `json:"username"`
		Secure   bool   `json:"secure"`
	} `json:"SmtpConfig,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (c *Client) GetMailingConfig(ctx context.Context, orgID string) (MailingConfig, error) {
	var out MailingConfig
	err := c.doJSON(ctx, "get_mailing_config", http.MethodGet, c.invoice("settings", orgID, "mailing-config"), nil, &out)
	return out, err
}

// SaveMailingConfig creates or replaces the organization's mailing config.
func (c *Client) SaveMailingConfig(ctx context.Context, orgID string, in MailingConfigInput) (MailingConfig, error) {
	var out MailingConfig
	err := c.doJSON(ctx, "save_mailing_config", http.MethodPost, c.invoice("settings", orgID, "mailing-config"), in, &out)
	return out, err
}

func (c *Client) TestMailingConnection(ctx context.Context, orgID string) error {
	return c.doJSON(ctx, "test_mailing_connection", http.MethodGet, c.invoice("settings", orgID, "mailing", "test-connection"), nil, nil)
}

func (c *Client) SendTestEmail(ctx context.Context, orgID string) error {
	return c.doJSON(ctx, "send_test_email", http.MethodPost, c.invoice("settings", orgID, "mailing", "send-test-email"), nil, nil)
}
