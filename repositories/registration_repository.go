package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/playforge/esports-platform/models"
)

var (
	ErrRegistrationNotFound     = errors.New("registration not found")
	ErrRegistrationConflict     = errors.New("user is already registered for this tournament")
	ErrRegistrationCapacityFull = errors.New("tournament has no free slots")
	ErrImageNotFound            = errors.New("verification image not found")
)

type RegistrationRepository interface {
	// CreateWithinCapacity атомарно проверяет вместимость и вставляет заявку,
	// удерживая блокировку строки турнира. Счётчик участников обновляется
	// в той же транзакции.
	CreateWithinCapacity(ctx context.Context, reg *models.Registration) error
	FindByID(ctx context.Context, id int) (*models.Registration, error)
	FindByUserAndTournament(ctx context.Context, userID, tournamentID int) (*models.Registration, error)
	// ListActiveByTournament возвращает активные заявки в порядке подачи.
	ListActiveByTournament(ctx context.Context, tournamentID int) ([]*models.Registration, error)
	CountActive(ctx context.Context, tournamentID int) (int, error)
	SetStatus(ctx context.Context, id int, status models.RegistrationStatus) error
	SetVerified(ctx context.Context, id, adminID int, at time.Time) error
	SetRejected(ctx context.Context, id, adminID int, reason string, at time.Time) error
	SetGroup(ctx context.Context, id int, label *string, pinned bool) error
	Delete(ctx context.Context, id int) error

	// UpsertImage заменяет снимок по ключу (slot, image_number); возвращает
	// ключ вытесненного объекта, чтобы вызывающий освободил блоб.
	UpsertImage(ctx context.Context, img *models.VerificationImage) (replacedKey string, err error)
	DeleteImage(ctx context.Context, registrationID, imageID int) (deletedKey string, err error)
	CountImages(ctx context.Context, registrationID int) (int, error)
}

type postgresRegistrationRepository struct {
	db *sql.DB
}

func NewPostgresRegistrationRepository(db *sql.DB) RegistrationRepository {
	return &postgresRegistrationRepository{db: db}
}

const registrationColumns = `id, tournament_id, user_id, team_name, leader, members, substitute,
	status, group_label, group_pinned, rejection_reason, verified_by, verified_at, created_at`

const activeStatusesSQL = `('pending', 'images_uploaded', 'verified')`

func (r *postgresRegistrationRepository) CreateWithinCapacity(ctx context.Context, reg *models.Registration) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin registration transaction: %w", err)
	}
	defer tx.Rollback()

	// Блокировка строки турнира сериализует конкурирующие подачи заявок
	// на один и тот же турнир.
	var maxParticipants int
	err = tx.QueryRowContext(ctx,
		`SELECT max_participants FROM tournaments WHERE id = $1 FOR UPDATE`,
		reg.TournamentID,
	).Scan(&maxParticipants)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrTournamentNotFound
		}
		return fmt.Errorf("failed to lock tournament row: %w", err)
	}

	var active int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM registrations WHERE tournament_id = $1 AND status IN `+activeStatusesSQL,
		reg.TournamentID,
	).Scan(&active)
	if err != nil {
		return fmt.Errorf("failed to count active registrations: %w", err)
	}
	if active >= maxParticipants {
		return ErrRegistrationCapacityFull
	}

	leaderJSON, membersJSON, substituteJSON, err := marshalTeam(reg)
	if err != nil {
		return err
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO registrations
			(tournament_id, user_id, team_name, leader, members, substitute, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`,
		reg.TournamentID,
		reg.UserID,
		reg.TeamName,
		leaderJSON,
		membersJSON,
		substituteJSON,
		reg.Status,
	).Scan(&reg.ID, &reg.CreatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			switch pqErr.Code {
			case "23505": // unique_violation
				if pqErr.Constraint == "registrations_tournament_id_user_id_key" {
					return ErrRegistrationConflict
				}
			case "23503": // foreign_key_violation
				if pqErr.Constraint == "registrations_tournament_id_fkey" {
					return ErrTournamentNotFound
				}
			}
		}
		return fmt.Errorf("failed to create registration: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE tournaments SET current_participants = $1 WHERE id = $2`,
		active+1, reg.TournamentID,
	)
	if err != nil {
		return fmt.Errorf("failed to bump participant count: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit registration transaction: %w", err)
	}
	return nil
}

func marshalTeam(reg *models.Registration) (leader, members, substitute []byte, err error) {
	leader, err = json.Marshal(reg.Leader)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to marshal team leader: %w", err)
	}
	members, err = json.Marshal(reg.Members)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to marshal team members: %w", err)
	}
	if reg.Substitute != nil {
		substitute, err = json.Marshal(reg.Substitute)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to marshal substitute: %w", err)
		}
	}
	return leader, members, substitute, nil
}

func (r *postgresRegistrationRepository) scanRegistration(rowScanner interface {
	Scan(dest ...interface{}) error
}, reg *models.Registration) error {
	var leaderJSON, membersJSON []byte
	var substituteJSON []byte

	err := rowScanner.Scan(
		&reg.ID,
		&reg.TournamentID,
		&reg.UserID,
		&reg.TeamName,
		&leaderJSON,
		&membersJSON,
		&substituteJSON,
		&reg.Status,
		&reg.Group,
		&reg.GroupPinned,
		&reg.RejectionReason,
		&reg.VerifiedBy,
		&reg.VerifiedAt,
		&reg.CreatedAt,
	)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(leaderJSON, &reg.Leader); err != nil {
		return fmt.Errorf("failed to unmarshal team leader: %w", err)
	}
	if err := json.Unmarshal(membersJSON, &reg.Members); err != nil {
		return fmt.Errorf("failed to unmarshal team members: %w", err)
	}
	if len(substituteJSON) > 0 {
		reg.Substitute = &models.TeamMember{}
		if err := json.Unmarshal(substituteJSON, reg.Substitute); err != nil {
			return fmt.Errorf("failed to unmarshal substitute: %w", err)
		}
	}
	return nil
}

func (r *postgresRegistrationRepository) findOne(ctx context.Context, query string, args ...interface{}) (*models.Registration, error) {
	reg := &models.Registration{}
	err := r.scanRegistration(r.db.QueryRowContext(ctx, query, args...), reg)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRegistrationNotFound
		}
		return nil, fmt.Errorf("failed to find registration: %w", err)
	}
	if err := r.loadImages(ctx, reg); err != nil {
		return nil, err
	}
	return reg, nil
}

func (r *postgresRegistrationRepository) loadImages(ctx context.Context, reg *models.Registration) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, registration_id, slot, image_number, object_key, url, uploaded_at
		FROM verification_images
		WHERE registration_id = $1
		ORDER BY slot, image_number`,
		reg.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to load verification images: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var img models.VerificationImage
		if err := rows.Scan(&img.ID, &img.RegistrationID, &img.Slot, &img.ImageNumber, &img.Key, &img.URL, &img.UploadedAt); err != nil {
			return fmt.Errorf("failed to scan verification image: %w", err)
		}
		reg.Images = append(reg.Images, img)
	}
	return rows.Err()
}

func (r *postgresRegistrationRepository) FindByID(ctx context.Context, id int) (*models.Registration, error) {
	query := fmt.Sprintf(`SELECT %s FROM registrations WHERE id = $1`, registrationColumns)
	return r.findOne(ctx, query, id)
}

func (r *postgresRegistrationRepository) FindByUserAndTournament(ctx context.Context, userID, tournamentID int) (*models.Registration, error) {
	query := fmt.Sprintf(`SELECT %s FROM registrations WHERE user_id = $1 AND tournament_id = $2`, registrationColumns)
	return r.findOne(ctx, query, userID, tournamentID)
}

func (r *postgresRegistrationRepository) ListActiveByTournament(ctx context.Context, tournamentID int) ([]*models.Registration, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM registrations
		WHERE tournament_id = $1 AND status IN %s
		ORDER BY created_at, id`,
		registrationColumns, activeStatusesSQL,
	)

	rows, err := r.db.QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list registrations: %w", err)
	}
	defer rows.Close()

	var registrations []*models.Registration
	for rows.Next() {
		reg := &models.Registration{}
		if err := r.scanRegistration(rows, reg); err != nil {
			return nil, fmt.Errorf("failed to scan registration row: %w", err)
		}
		registrations = append(registrations, reg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("registration rows iteration error: %w", err)
	}
	return registrations, nil
}

func (r *postgresRegistrationRepository) CountActive(ctx context.Context, tournamentID int) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM registrations WHERE tournament_id = $1 AND status IN `+activeStatusesSQL,
		tournamentID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count active registrations: %w", err)
	}
	return count, nil
}

func (r *postgresRegistrationRepository) exec(ctx context.Context, query string, args ...interface{}) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update registration: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows for registration update: %w", err)
	}
	if affected == 0 {
		return ErrRegistrationNotFound
	}
	return nil
}

func (r *postgresRegistrationRepository) SetStatus(ctx context.Context, id int, status models.RegistrationStatus) error {
	return r.exec(ctx, `UPDATE registrations SET status = $1 WHERE id = $2`, status, id)
}

func (r *postgresRegistrationRepository) SetVerified(ctx context.Context, id, adminID int, at time.Time) error {
	return r.exec(ctx, `
		UPDATE registrations
		SET status = 'verified', verified_by = $1, verified_at = $2, rejection_reason = NULL
		WHERE id = $3`,
		adminID, at, id)
}

func (r *postgresRegistrationRepository) SetRejected(ctx context.Context, id, adminID int, reason string, at time.Time) error {
	return r.exec(ctx, `
		UPDATE registrations
		SET status = 'rejected', verified_by = $1, verified_at = $2, rejection_reason = $3
		WHERE id = $4`,
		adminID, at, reason, id)
}

func (r *postgresRegistrationRepository) SetGroup(ctx context.Context, id int, label *string, pinned bool) error {
	return r.exec(ctx, `UPDATE registrations SET group_label = $1, group_pinned = $2 WHERE id = $3`, label, pinned, id)
}

func (r *postgresRegistrationRepository) Delete(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM registrations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete registration: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows for registration delete: %w", err)
	}
	if affected == 0 {
		return ErrRegistrationNotFound
	}
	return nil
}

func (r *postgresRegistrationRepository) UpsertImage(ctx context.Context, img *models.VerificationImage) (string, error) {
	var replacedKey sql.NullString
	err := r.db.QueryRowContext(ctx, `
		SELECT object_key FROM verification_images
		WHERE registration_id = $1 AND slot = $2 AND image_number = $3`,
		img.RegistrationID, img.Slot, img.ImageNumber,
	).Scan(&replacedKey)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("failed to look up existing image: %w", err)
	}

	err = r.db.QueryRowContext(ctx, `
		INSERT INTO verification_images (registration_id, slot, image_number, object_key, url, uploaded_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (registration_id, slot, image_number)
		DO UPDATE SET object_key = EXCLUDED.object_key, url = EXCLUDED.url, uploaded_at = EXCLUDED.uploaded_at
		RETURNING id`,
		img.RegistrationID, img.Slot, img.ImageNumber, img.Key, img.URL, img.UploadedAt,
	).Scan(&img.ID)
	if err != nil {
		return "", fmt.Errorf("failed to upsert verification image: %w", err)
	}
	return replacedKey.String, nil
}

func (r *postgresRegistrationRepository) DeleteImage(ctx context.Context, registrationID, imageID int) (string, error) {
	var key string
	err := r.db.QueryRowContext(ctx, `
		DELETE FROM verification_images
		WHERE id = $1 AND registration_id = $2
		RETURNING object_key`,
		imageID, registrationID,
	).Scan(&key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrImageNotFound
		}
		return "", fmt.Errorf("failed to delete verification image: %w", err)
	}
	return key, nil
}

func (r *postgresRegistrationRepository) CountImages(ctx context.Context, registrationID int) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM verification_images WHERE registration_id = $1`,
		registrationID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count verification images: %w", err)
	}
	return count, nil
}
