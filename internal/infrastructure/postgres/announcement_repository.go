package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Mr-houngbo/Colit/internal/domain/announcement"
)

const announcementColumns = `id, poster_id, kind, departure_city, arrival_city, date, weight_kg, price_per_kg, transport_mode, is_fragile, is_urgent, receiver_name, receiver_phone, receiver_email, package_value, description, status, created_at, updated_at`

// AnnouncementRepository implements announcement.Repository.
type AnnouncementRepository struct {
	pool *pgxpool.Pool
}

func NewAnnouncementRepository(pool *pgxpool.Pool) *AnnouncementRepository {
	return &AnnouncementRepository{pool: pool}
}

func (r *AnnouncementRepository) Create(ctx context.Context, a *announcement.Announcement) error {
	name, phone, email := contactColumns(a.ReceiverContact)
	_, err := r.pool.Exec(ctx, `
		INSERT INTO announcements (`+announcementColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
	`, a.ID, a.PosterID, a.Kind, a.DepartureCity, a.ArrivalCity, a.Date, a.WeightKg, a.PricePerKg, a.TransportMode, a.IsFragile, a.IsUrgent, name, phone, email, a.PackageValue, a.Description, a.Status, a.CreatedAt, a.UpdatedAt)
	return err
}

func (r *AnnouncementRepository) GetByID(ctx context.Context, id uuid.UUID) (*announcement.Announcement, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+announcementColumns+` FROM announcements WHERE id=$1`, id)
	return scanAnnouncement(row)
}

func (r *AnnouncementRepository) List(ctx context.Context, filter announcement.Filter) ([]*announcement.Announcement, error) {
	query := `SELECT ` + announcementColumns + ` FROM announcements`
	args := []interface{}{}
	idx := 1
	if filter.Kind != nil {
		query += addWhere(query) + " kind=$" + itoa(idx)
		args = append(args, *filter.Kind)
		idx++
	}
	if filter.Status != nil {
		query += addWhere(query) + " status=$" + itoa(idx)
		args = append(args, *filter.Status)
		idx++
	}
	if filter.PosterID != "" {
		query += addWhere(query) + " poster_id=$" + itoa(idx)
		args = append(args, filter.PosterID)
		idx++
	}
	if filter.DepartureCity != "" {
		query += addWhere(query) + " lower(departure_city)=lower($" + itoa(idx) + ")"
		args = append(args, filter.DepartureCity)
		idx++
	}
	if filter.ArrivalCity != "" {
		query += addWhere(query) + " lower(arrival_city)=lower($" + itoa(idx) + ")"
		args = append(args, filter.ArrivalCity)
		idx++
	}
	if filter.Since != nil {
		query += addWhere(query) + " date >= $" + itoa(idx)
		args = append(args, *filter.Since)
		idx++
	}
	query += " ORDER BY created_at DESC, id ASC"
	if filter.Limit > 0 {
		query += " LIMIT $" + itoa(idx)
		args = append(args, filter.Limit)
		idx++
	}
	if filter.Offset > 0 {
		query += " OFFSET $" + itoa(idx)
		args = append(args, filter.Offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*announcement.Announcement
	for rows.Next() {
		a, err := scanAnnouncement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *AnnouncementRepository) AdvanceStatus(ctx context.Context, id uuid.UUID, next announcement.Status, updatedAt time.Time) (bool, error) {
	prev := next.Predecessors()
	if len(prev) == 0 {
		return false, nil
	}
	res, err := r.pool.Exec(ctx, `
		UPDATE announcements SET status=$1, updated_at=$2
		WHERE id=$3 AND status = ANY($4)
	`, next, updatedAt, id, statusStrings(prev))
	if err != nil {
		return false, err
	}
	return res.RowsAffected() == 1, nil
}

func statusStrings(in []announcement.Status) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = string(s)
	}
	return out
}

func scanAnnouncement(row pgx.Row) (*announcement.Announcement, error) {
	var a announcement.Announcement
	var name, phone, email *string
	if err := row.Scan(&a.ID, &a.PosterID, &a.Kind, &a.DepartureCity, &a.ArrivalCity, &a.Date, &a.WeightKg, &a.PricePerKg, &a.TransportMode, &a.IsFragile, &a.IsUrgent, &name, &phone, &email, &a.PackageValue, &a.Description, &a.Status, &a.CreatedAt, &a.UpdatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	a.ReceiverContact = contactFromColumns(name, phone, email)
	return &a, nil
}
