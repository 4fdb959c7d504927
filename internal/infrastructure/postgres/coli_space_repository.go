package postgres

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Mr-houngbo/Colit/internal/domain/colispace"
)

const foreignKeyViolation = "23503"

const coliSpaceColumns = `id, announcement_id, sender_id, gp_id, receiver_id, receiver_name, receiver_phone, receiver_email, status, last_message_at, created_at, updated_at`

const stepColumns = `coli_space_id, step_id, label, position, completed, validated_by, validated_at`

const messageColumns = `id, coli_space_id, user_id, text, attachments, created_at`

var (
	_ colispace.Repository        = (*ColiSpaceRepository)(nil)
	_ colispace.MessageRepository = (*ColiSpaceRepository)(nil)
)

// ColiSpaceRepository implements colispace.Repository and
// colispace.MessageRepository.
type ColiSpaceRepository struct {
	pool *pgxpool.Pool
}

func NewColiSpaceRepository(pool *pgxpool.Pool) *ColiSpaceRepository {
	return &ColiSpaceRepository{pool: pool}
}

func (r *ColiSpaceRepository) GetByID(ctx context.Context, id uuid.UUID) (*colispace.ColiSpace, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+coliSpaceColumns+` FROM coli_spaces WHERE id=$1`, id)
	return scanColiSpace(row)
}

func (r *ColiSpaceRepository) FindByPair(ctx context.Context, announcementID uuid.UUID, senderID, gpID string) (*colispace.ColiSpace, error) {
	if gpID == "" {
		return r.FindPending(ctx, announcementID, senderID)
	}
	row := r.pool.QueryRow(ctx, `
		SELECT `+coliSpaceColumns+` FROM coli_spaces
		WHERE announcement_id=$1 AND sender_id=$2 AND gp_id=$3
	`, announcementID, senderID, gpID)
	return scanColiSpace(row)
}

func (r *ColiSpaceRepository) FindPending(ctx context.Context, announcementID uuid.UUID, senderID string) (*colispace.ColiSpace, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+coliSpaceColumns+` FROM coli_spaces
		WHERE announcement_id=$1 AND sender_id=$2 AND gp_id IS NULL
	`, announcementID, senderID)
	return scanColiSpace(row)
}

func (r *ColiSpaceRepository) ListByParticipant(ctx context.Context, who colispace.Identity) ([]*colispace.ColiSpace, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+coliSpaceColumns+` FROM coli_spaces
		WHERE ($1 <> '' AND (sender_id=$1 OR gp_id=$1 OR receiver_id=$1))
		   OR ($2 <> '' AND lower(receiver_email)=lower($2))
		ORDER BY GREATEST(updated_at, COALESCE(last_message_at, updated_at)) DESC, id ASC
	`, who.UserID, strings.TrimSpace(who.Email))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*colispace.ColiSpace
	for rows.Next() {
		sp, err := scanColiSpace(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sp)
	}
	return out, rows.Err()
}

// GetOrCreate inserts the space and its timeline in one transaction. When a
// unique index already holds the pair, the existing space is returned.
func (r *ColiSpaceRepository) GetOrCreate(ctx context.Context, space *colispace.ColiSpace, steps []*colispace.TimelineStep) (*colispace.ColiSpace, bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	name, phone, email := contactColumns(space.ReceiverContact)
	var id uuid.UUID
	err = tx.QueryRow(ctx, `
		INSERT INTO coli_spaces (`+coliSpaceColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		ON CONFLICT DO NOTHING
		RETURNING id
	`, space.ID, space.AnnouncementID, space.SenderID, nullable(space.GPID), nullable(space.ReceiverID), name, phone, email, space.Status, space.LastMessageAt, space.CreatedAt, space.UpdatedAt).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		_ = tx.Rollback(ctx)
		existing, err := r.FindByPair(ctx, space.AnnouncementID, space.SenderID, space.GPID)
		if err != nil {
			return nil, false, err
		}
		if existing == nil {
			return nil, false, errors.New("coli space conflict without a matching row")
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	batch := &pgx.Batch{}
	for _, st := range steps {
		batch.Queue(`
			INSERT INTO timeline_steps (`+stepColumns+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
		`, id, st.StepID, st.Label, st.Position, st.Completed, st.ValidatedBy, st.ValidatedAt)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return nil, false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, false, err
	}

	created, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if created == nil {
		return nil, false, colispace.NotFound("coli space", id)
	}
	return created, true, nil
}

func (r *ColiSpaceRepository) AttachGP(ctx context.Context, id uuid.UUID, gpID string, at time.Time) (bool, error) {
	res, err := r.pool.Exec(ctx, `
		UPDATE coli_spaces SET gp_id=$2, updated_at=$3
		WHERE id=$1 AND gp_id IS NULL AND sender_id <> $2
	`, id, gpID, at)
	if isUniqueViolation(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return res.RowsAffected() == 1, nil
}

func (r *ColiSpaceRepository) AttachReceiver(ctx context.Context, id uuid.UUID, receiverID string, at time.Time) (bool, error) {
	res, err := r.pool.Exec(ctx, `
		UPDATE coli_spaces SET receiver_id=$2, updated_at=$3
		WHERE id=$1 AND receiver_id IS NULL
	`, id, receiverID, at)
	if err != nil {
		return false, err
	}
	if res.RowsAffected() == 1 {
		return true, nil
	}
	var current *string
	err = r.pool.QueryRow(ctx, `SELECT receiver_id FROM coli_spaces WHERE id=$1`, id).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return current != nil && *current == receiverID, nil
}

func (r *ColiSpaceRepository) AdvanceStatus(ctx context.Context, id uuid.UUID, next colispace.Status, at time.Time) (bool, error) {
	prev := next.Predecessors()
	if len(prev) == 0 {
		return false, nil
	}
	states := make([]string, len(prev))
	for i, s := range prev {
		states[i] = string(s)
	}
	res, err := r.pool.Exec(ctx, `
		UPDATE coli_spaces SET status=$2, updated_at=$3
		WHERE id=$1 AND status = ANY($4)
	`, id, next, at, states)
	if err != nil {
		return false, err
	}
	return res.RowsAffected() == 1, nil
}

func (r *ColiSpaceRepository) TouchLastMessage(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE coli_spaces SET last_message_at=$2
		WHERE id=$1 AND (last_message_at IS NULL OR last_message_at <= $2)
	`, id, at)
	return err
}

func (r *ColiSpaceRepository) ListSteps(ctx context.Context, id uuid.UUID) ([]*colispace.TimelineStep, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+stepColumns+` FROM timeline_steps
		WHERE coli_space_id=$1 ORDER BY position ASC
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*colispace.TimelineStep
	for rows.Next() {
		st, err := scanStep(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (r *ColiSpaceRepository) getStep(ctx context.Context, id uuid.UUID, stepID colispace.StepID) (*colispace.TimelineStep, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+stepColumns+` FROM timeline_steps WHERE coli_space_id=$1 AND step_id=$2
	`, id, stepID)
	return scanStep(row)
}

// CompleteStep is a compare-and-set on completed=false.
func (r *ColiSpaceRepository) CompleteStep(ctx context.Context, id uuid.UUID, stepID colispace.StepID, validatedBy *string, at time.Time) (bool, error) {
	res, err := r.pool.Exec(ctx, `
		UPDATE timeline_steps SET completed=TRUE, validated_by=$3, validated_at=$4
		WHERE coli_space_id=$1 AND step_id=$2 AND completed=FALSE
	`, id, stepID, validatedBy, at)
	if err != nil {
		return false, err
	}
	return res.RowsAffected() == 1, nil
}

func (r *ColiSpaceRepository) CreateMessage(ctx context.Context, msg *colispace.Message) error {
	attachments := msg.Attachments
	if attachments == nil {
		attachments = []string{}
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO messages (`+messageColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, msg.ID, msg.ColiSpaceID, msg.UserID, msg.Text, attachments, msg.CreatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
		return colispace.NotFound("coli space", msg.ColiSpaceID)
	}
	return err
}

func (r *ColiSpaceRepository) ListMessages(ctx context.Context, coliSpaceID uuid.UUID) ([]*colispace.Message, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+messageColumns+` FROM messages
		WHERE coli_space_id=$1 ORDER BY created_at ASC, id ASC
	`, coliSpaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*colispace.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	colispace.SortMessages(out)
	return out, nil
}

func (r *ColiSpaceRepository) getMessage(ctx context.Context, id uuid.UUID) (*colispace.Message, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+messageColumns+` FROM messages WHERE id=$1`, id)
	return scanMessage(row)
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func scanColiSpace(row pgx.Row) (*colispace.ColiSpace, error) {
	var sp colispace.ColiSpace
	var gpID, receiverID, name, phone, email *string
	if err := row.Scan(&sp.ID, &sp.AnnouncementID, &sp.SenderID, &gpID, &receiverID, &name, &phone, &email, &sp.Status, &sp.LastMessageAt, &sp.CreatedAt, &sp.UpdatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if gpID != nil {
		sp.GPID = *gpID
	}
	if receiverID != nil {
		sp.ReceiverID = *receiverID
	}
	sp.ReceiverContact = contactFromColumns(name, phone, email)
	return &sp, nil
}

func scanStep(row pgx.Row) (*colispace.TimelineStep, error) {
	var st colispace.TimelineStep
	if err := row.Scan(&st.ColiSpaceID, &st.StepID, &st.Label, &st.Position, &st.Completed, &st.ValidatedBy, &st.ValidatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &st, nil
}

func scanMessage(row pgx.Row) (*colispace.Message, error) {
	var m colispace.Message
	if err := row.Scan(&m.ID, &m.ColiSpaceID, &m.UserID, &m.Text, &m.Attachments, &m.CreatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}
