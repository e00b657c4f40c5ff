package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/rutavity/payments/internal/domain"
)

const partnerForSession = `SELECT partner_id FROM partner_sessions WHERE token = $1 AND expires_at > $2`

// PartnerIDForSession resolves a live portal session token.
func (q *Queries) PartnerIDForSession(ctx context.Context, token string, now time.Time) (int64, error) {
	var id int64
	if err := q.db.QueryRow(ctx, partnerForSession, token, now).Scan(&id); err != nil {
		if isNoRows(err) {
			return 0, domain.Unauthorized("postgres.partner_for_session", "Session expired or invalid")
		}
		return 0, fmt.Errorf("resolve session: %w", err)
	}
	return id, nil
}
