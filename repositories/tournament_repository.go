package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/playforge/esports-platform/models"
)

var (
	ErrTournamentNotFound     = errors.New("tournament not found")
	ErrTournamentNameConflict = errors.New("tournament name already exists")
	ErrTournamentHasRegistrations = errors.New("tournament still has active registrations")
)

type TournamentRepository interface {
	Create(ctx context.Context, t *models.Tournament) error
	GetByID(ctx context.Context, id int) (*models.Tournament, error)
	List(ctx context.Context, limit, offset int) ([]models.Tournament, error)
	ListNonTerminal(ctx context.Context) ([]models.Tournament, error)
	// CompareAndSwapStatus переводит статус только если хранимый статус равен from.
	// Возвращает false без ошибки, если свопа не произошло (кто-то успел раньше).
	CompareAndSwapStatus(ctx context.Context, id int, from, to models.TournamentStatus) (bool, error)
	SetStatus(ctx context.Context, id int, to models.TournamentStatus) error
	// UpdateParticipantCount пишет счётчик только при отличии от хранимого значения.
	// Возвращает true, если запись состоялась.
	UpdateParticipantCount(ctx context.Context, id, count int) (bool, error)
	Delete(ctx context.Context, id int) error
}

type postgresTournamentRepository struct {
	db *sql.DB
}

func NewPostgresTournamentRepository(db *sql.DB) TournamentRepository {
	return &postgresTournamentRepository{db: db}
}

const tournamentColumns = `id, name, description, game_type, organizer_id, status,
	registration_deadline, start_date, end_date,
	max_participants, current_participants, grouping_enabled, group_size, created_at`

func (r *postgresTournamentRepository) Create(ctx context.Context, t *models.Tournament) error {
	query := `
		INSERT INTO tournaments
			(name, description, game_type, organizer_id, status,
			 registration_deadline, start_date, end_date,
			 max_participants, grouping_enabled, group_size)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, current_participants, created_at`

	err := r.db.QueryRowContext(ctx, query,
		t.Name,
		t.Description,
		t.GameType,
		t.OrganizerID,
		t.Status,
		t.RegistrationDeadline,
		t.StartDate,
		t.EndDate,
		t.MaxParticipants,
		t.Grouping.Enabled,
		t.Grouping.GroupSize,
	).Scan(&t.ID, &t.CurrentParticipants, &t.CreatedAt)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			if pqErr.Constraint == "tournaments_name_key" {
				return ErrTournamentNameConflict
			}
		}
		return fmt.Errorf("failed to create tournament: %w", err)
	}
	return nil
}

func (r *postgresTournamentRepository) scanTournament(rowScanner interface {
	Scan(dest ...interface{}) error
}, t *models.Tournament) error {
	return rowScanner.Scan(
		&t.ID,
		&t.Name,
		&t.Description,
		&t.GameType,
		&t.OrganizerID,
		&t.Status,
		&t.RegistrationDeadline,
		&t.StartDate,
		&t.EndDate,
		&t.MaxParticipants,
		&t.CurrentParticipants,
		&t.Grouping.Enabled,
		&t.Grouping.GroupSize,
		&t.CreatedAt,
	)
}

func (r *postgresTournamentRepository) GetByID(ctx context.Context, id int) (*models.Tournament, error) {
	query := fmt.Sprintf(`SELECT %s FROM tournaments WHERE id = $1`, tournamentColumns)

	t := &models.Tournament{}
	err := r.scanTournament(r.db.QueryRowContext(ctx, query, id), t)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to find tournament: %w", err)
	}
	return t, nil
}

func (r *postgresTournamentRepository) list(ctx context.Context, query string, args ...interface{}) ([]models.Tournament, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tournaments: %w", err)
	}
	defer rows.Close()

	var tournaments []models.Tournament
	for rows.Next() {
		var t models.Tournament
		if err := r.scanTournament(rows, &t); err != nil {
			return nil, fmt.Errorf("failed to scan tournament row: %w", err)
		}
		tournaments = append(tournaments, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("tournament rows iteration error: %w", err)
	}
	return tournaments, nil
}

func (r *postgresTournamentRepository) List(ctx context.Context, limit, offset int) ([]models.Tournament, error) {
	query := fmt.Sprintf(`SELECT %s FROM tournaments ORDER BY created_at DESC LIMIT $1 OFFSET $2`, tournamentColumns)
	return r.list(ctx, query, limit, offset)
}

func (r *postgresTournamentRepository) ListNonTerminal(ctx context.Context) ([]models.Tournament, error) {
	query := fmt.Sprintf(
		`SELECT %s FROM tournaments WHERE status NOT IN ('completed', 'cancelled') ORDER BY id`,
		tournamentColumns,
	)
	return r.list(ctx, query)
}

func (r *postgresTournamentRepository) CompareAndSwapStatus(ctx context.Context, id int, from, to models.TournamentStatus) (bool, error) {
	query := `UPDATE tournaments SET status = $1 WHERE id = $2 AND status = $3`
	result, err := r.db.ExecContext(ctx, query, to, id, from)
	if err != nil {
		return false, fmt.Errorf("failed to swap tournament status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows for status swap: %w", err)
	}
	return affected == 1, nil
}

func (r *postgresTournamentRepository) SetStatus(ctx context.Context, id int, to models.TournamentStatus) error {
	query := `UPDATE tournaments SET status = $1 WHERE id = $2`
	result, err := r.db.ExecContext(ctx, query, to, id)
	if err != nil {
		return fmt.Errorf("failed to update tournament status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows for status update: %w", err)
	}
	if affected == 0 {
		return ErrTournamentNotFound
	}
	return nil
}

func (r *postgresTournamentRepository) UpdateParticipantCount(ctx context.Context, id, count int) (bool, error) {
	query := `UPDATE tournaments SET current_participants = $1 WHERE id = $2 AND current_participants <> $1`
	result, err := r.db.ExecContext(ctx, query, count, id)
	if err != nil {
		return false, fmt.Errorf("failed to update participant count: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows for participant count: %w", err)
	}
	return affected == 1, nil
}

func (r *postgresTournamentRepository) Delete(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM tournaments WHERE id = $1`, id)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23503" {
			return ErrTournamentHasRegistrations
		}
		return fmt.Errorf("failed to delete tournament: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows for tournament delete: %w", err)
	}
	if affected == 0 {
		return ErrTournamentNotFound
	}
	return nil
}
