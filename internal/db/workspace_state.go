package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

const createWorkspaceStateSQL = `
create table if not exists workspace_state (
    key        text primary key,
    state      jsonb not null,
    updated_at timestamptz not null default now(),
    expires_at timestamptz not null
);
`

const loadWorkspaceStateSQL = `
select state::text
from workspace_state
where key = $1 and expires_at > now();
`

const saveWorkspaceStateSQL = `
insert into workspace_state (key, state, expires_at)
values ($1, $2::jsonb, $3)
on conflict (key)
    do update set state = excluded.state, updated_at = now(), expires_at = excluded.expires_at;
`

const deleteWorkspaceStateSQL = `
delete from workspace_state
where key = $1;
`

const purgeWorkspaceStateSQL = `
delete from workspace_state
where expires_at <= now();
`

// EnsureSchema creates the tables this service owns.
func (p *Pool) EnsureSchema(ctx context.Context) error {
	if p == nil {
		return errors.New("nil db pool")
	}
	if _, err := p.Exec(ctx, createWorkspaceStateSQL); err != nil {
		return fmt.Errorf("create workspace_state: %w", err)
	}
	return nil
}

// LoadWorkspaceState returns the unexpired persisted state stored for key.
func (p *Pool) LoadWorkspaceState(ctx context.Context, key string) ([]byte, bool, error) {
	if p == nil {
		return nil, false, errors.New("nil db pool")
	}

	var state string
	err := p.QueryRow(ctx, loadWorkspaceStateSQL, key).Scan(&state)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load workspace state: %w", err)
	}
	return []byte(state), true, nil
}

func (p *Pool) SaveWorkspaceState(ctx context.Context, key string, state []byte, expiresAt time.Time) error {
	if p == nil {
		return errors.New("nil db pool")
	}
	if _, err := p.Exec(ctx, saveWorkspaceStateSQL, key, string(state), expiresAt); err != nil {
		return fmt.Errorf("save workspace state: %w", err)
	}
	return nil
}

func (p *Pool) DeleteWorkspaceState(ctx context.Context, key string) error {
	if p == nil {
		return errors.New("nil db pool")
	}
	if _, err := p.Exec(ctx, deleteWorkspaceStateSQL, key); err != nil {
		return fmt.Errorf("delete workspace state: %w", err)
	}
	return nil
}

// PurgeExpiredWorkspaceState removes expired rows and reports how many went.
func (p *Pool) PurgeExpiredWorkspaceState(ctx context.Context) (int64, error) {
	if p == nil {
		return 0, errors.New("nil db pool")
	}
	tag, err := p.Exec(ctx, purgeWorkspaceStateSQL)
	if err != nil {
		return 0, fmt.Errorf("purge workspace state: %w", err)
	}
	return tag.RowsAffected(), nil
}
