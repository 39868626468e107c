package supabase

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"race-photos-backend/internal/models"
)

// DatabaseClient is the Postgres-backed store for photos, selections, access
// rows, surveys and payments.
type DatabaseClient struct {
	db *sql.DB
}

func NewDatabaseClient(connectionString string) (*DatabaseClient, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DatabaseClient{db: db}, nil
}

// DB exposes the pool for the migrator.
func (d *DatabaseClient) DB() *sql.DB {
	return d.db
}

func (d *DatabaseClient) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

func (d *DatabaseClient) Close() error {
	return d.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

const photoColumns = `p.id, p.bib_number, p.preview_url, p.highres_url, p.watermark_url,
	p.photo_order, p.is_active, p.metadata, p.uploaded_at, p.updated_at`

func scanPhoto(row rowScanner, extra ...any) (models.Photo, error) {
	var (
		photo     models.Photo
		bib       string
		watermark sql.NullString
		metadata  []byte
	)
	dest := append([]any{
		&photo.ID, &bib, &photo.PreviewURL, &photo.HighresURL, &watermark,
		&photo.PhotoOrder, &photo.IsActive, &metadata, &photo.UploadedAt, &photo.UpdatedAt,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		return models.Photo{}, err
	}
	photo.BibNumber = models.BibNumber(bib)
	if watermark.Valid {
		photo.WatermarkURL = &watermark.String
	}
	if len(metadata) > 0 {
		photo.Metadata = json.RawMessage(metadata)
	}
	return photo, nil
}

func (d *DatabaseClient) ListPhotosByBib(ctx context.Context, bib models.BibNumber) ([]models.Photo, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT `+photoColumns+`
		FROM photos p
		WHERE p.bib_number = $1
		ORDER BY p.photo_order, p.uploaded_at
	`, bib.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list photos: %w", err)
	}
	defer rows.Close()

	var photos []models.Photo
	for rows.Next() {
		photo, err := scanPhoto(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan photo: %w", err)
		}
		photos = append(photos, photo)
	}
	return photos, rows.Err()
}

func (d *DatabaseClient) GetPhoto(ctx context.Context, id uuid.UUID) (*models.Photo, error) {
	photo, err := scanPhoto(d.db.QueryRowContext(ctx, `
		SELECT `+photoColumns+`
		FROM photos p
		WHERE p.id = $1
	`, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get photo: %w", notFound(err))
	}
	return &photo, nil
}

func (d *DatabaseClient) GetActivePhotos(ctx context.Context, bib models.BibNumber, ids []uuid.UUID) ([]models.Photo, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT `+photoColumns+`
		FROM photos p
		WHERE p.bib_number = $1 AND p.is_active AND p.id = ANY($2::uuid[])
		ORDER BY p.photo_order
	`, bib.String(), pq.Array(uuidStrings(ids)))
	if err != nil {
		return nil, fmt.Errorf("failed to get photos: %w", err)
	}
	defer rows.Close()

	var photos []models.Photo
	for rows.Next() {
		photo, err := scanPhoto(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan photo: %w", err)
		}
		photos = append(photos, photo)
	}
	return photos, rows.Err()
}

func (d *DatabaseClient) CreatePhoto(ctx context.Context, photo *models.Photo) error {
	if photo.ID == uuid.Nil {
		photo.ID = uuid.New()
	}
	metadata := []byte(photo.Metadata)
	if len(metadata) == 0 {
		metadata = []byte("{}")
	}

	var watermark sql.NullString
	if photo.WatermarkURL != nil {
		watermark = sql.NullString{String: *photo.WatermarkURL, Valid: true}
	}

	err := d.db.QueryRowContext(ctx, `
		INSERT INTO photos (id, bib_number, preview_url, highres_url, watermark_url, photo_order, is_active, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING uploaded_at, updated_at
	`, photo.ID, photo.BibNumber.String(), photo.PreviewURL, photo.HighresURL, watermark,
		photo.PhotoOrder, photo.IsActive, metadata,
	).Scan(&photo.UploadedAt, &photo.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create photo: %w", err)
	}
	return nil
}

func (d *DatabaseClient) UpdatePhotoURLs(ctx context.Context, id uuid.UUID, previewURL, highresURL string, watermarkURL *string) (time.Time, error) {
	var watermark sql.NullString
	if watermarkURL != nil {
		watermark = sql.NullString{String: *watermarkURL, Valid: true}
	}

	var updatedAt time.Time
	err := d.db.QueryRowContext(ctx, `
		UPDATE photos
		SET preview_url = $2, highres_url = $3, watermark_url = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`, id, previewURL, highresURL, watermark).Scan(&updatedAt)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to update photo urls: %w", notFound(err))
	}
	return updatedAt, nil
}

func (d *DatabaseClient) DeletePhoto(ctx context.Context, id uuid.UUID) error {
	return d.withTx(ctx, func(tx *sql.Tx) error {
		for _, stmt := range []string{
			`DELETE FROM order_items WHERE photo_id = $1`,
			`DELETE FROM photo_selections WHERE photo_id = $1`,
			`DELETE FROM photo_access WHERE photo_id = $1`,
		} {
			if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
				return fmt.Errorf("failed to delete photo references: %w", err)
			}
		}

		res, err := tx.ExecContext(ctx, `DELETE FROM photos WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("failed to delete photo: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("failed to delete photo: %w", models.ErrRecordNotFound)
		}
		return nil
	})
}

func (d *DatabaseClient) NextPhotoOrder(ctx context.Context, bib models.BibNumber) (int, error) {
	var next int
	err := d.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(photo_order), 0) + 1 FROM photos WHERE bib_number = $1
	`, bib.String()).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("failed to get next photo order: %w", err)
	}
	return next, nil
}

func (d *DatabaseClient) UpsertSelection(ctx context.Context, bib models.BibNumber, photoID uuid.UUID, selected bool) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO photo_selections (bib_number, photo_id, is_selected)
		VALUES ($1, $2, $3)
		ON CONFLICT (bib_number, photo_id) DO UPDATE SET is_selected = EXCLUDED.is_selected
	`, bib.String(), photoID, selected)
	if err != nil {
		return fmt.Errorf("failed to upsert selection: %w", err)
	}
	return nil
}

// ReplaceSelections writes a row for every photo of the bib so that photos
// outside ids are explicitly deselected.
func (d *DatabaseClient) ReplaceSelections(ctx context.Context, bib models.BibNumber, ids []uuid.UUID) error {
	return d.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			UPDATE photo_selections SET is_selected = FALSE WHERE bib_number = $1
		`, bib.String()); err != nil {
			return fmt.Errorf("failed to clear selections: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO photo_selections (bib_number, photo_id, is_selected)
			SELECT p.bib_number, p.id, p.id = ANY($2::uuid[])
			FROM photos p
			WHERE p.bib_number = $1
			ON CONFLICT (bib_number, photo_id) DO UPDATE SET is_selected = EXCLUDED.is_selected
		`, bib.String(), pq.Array(uuidStrings(ids))); err != nil {
			return fmt.Errorf("failed to save selections: %w", err)
		}
		return nil
	})
}

func (d *DatabaseClient) ListSelections(ctx context.Context, bib models.BibNumber) ([]models.PhotoSelection, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, bib_number, photo_id, is_selected, created_at
		FROM photo_selections
		WHERE bib_number = $1
	`, bib.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list selections: %w", err)
	}
	defer rows.Close()

	var selections []models.PhotoSelection
	for rows.Next() {
		var (
			sel models.PhotoSelection
			b   string
		)
		if err := rows.Scan(&sel.ID, &b, &sel.PhotoID, &sel.IsSelected, &sel.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan selection: %w", err)
		}
		sel.BibNumber = models.BibNumber(b)
		selections = append(selections, sel)
	}
	return selections, rows.Err()
}

const accessColumns = `a.id, a.photo_id, a.bib_number, a.survey_completed, a.payment_completed,
	a.is_unlocked, a.unlocked_at, a.download_count, a.last_downloaded_at, a.created_at`

type accessScan struct {
	access       models.PhotoAccess
	bib          string
	unlockedAt   sql.NullTime
	downloadedAt sql.NullTime
}

func (s *accessScan) dest() []any {
	a := &s.access
	return []any{
		&a.ID, &a.PhotoID, &s.bib, &a.SurveyCompleted, &a.PaymentCompleted,
		&a.IsUnlocked, &s.unlockedAt, &a.DownloadCount, &s.downloadedAt, &a.CreatedAt,
	}
}

func (s *accessScan) result() models.PhotoAccess {
	s.access.BibNumber = models.BibNumber(s.bib)
	s.access.UnlockedAt = timePtr(s.unlockedAt)
	s.access.LastDownloadedAt = timePtr(s.downloadedAt)
	return s.access
}

func (d *DatabaseClient) EnsureAccess(ctx context.Context, bib models.BibNumber, photoIDs []uuid.UUID) error {
	if len(photoIDs) == 0 {
		return nil
	}
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO photo_access (photo_id, bib_number)
		SELECT unnest($2::uuid[]), $1::text
		ON CONFLICT (photo_id, bib_number) DO NOTHING
	`, bib.String(), pq.Array(uuidStrings(photoIDs)))
	if err != nil {
		return fmt.Errorf("failed to create photo access: %w", err)
	}
	return nil
}

func (d *DatabaseClient) ListAccess(ctx context.Context, bib models.BibNumber) ([]models.PhotoAccess, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT `+accessColumns+`
		FROM photo_access a
		WHERE a.bib_number = $1
	`, bib.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list photo access: %w", err)
	}
	defer rows.Close()

	var out []models.PhotoAccess
	for rows.Next() {
		var s accessScan
		if err := rows.Scan(s.dest()...); err != nil {
			return nil, fmt.Errorf("failed to scan photo access: %w", err)
		}
		out = append(out, s.result())
	}
	return out, rows.Err()
}

func (d *DatabaseClient) MarkSurveyCompleted(ctx context.Context, bib models.BibNumber, photoIDs []uuid.UUID) error {
	if len(photoIDs) == 0 {
		return nil
	}
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO photo_access (photo_id, bib_number, survey_completed)
		SELECT p.id, p.bib_number, TRUE
		FROM photos p
		WHERE p.bib_number = $1 AND p.id = ANY($2::uuid[])
		ON CONFLICT (photo_id, bib_number) DO UPDATE SET survey_completed = TRUE
	`, bib.String(), pq.Array(uuidStrings(photoIDs)))
	if err != nil {
		return fmt.Errorf("failed to mark survey completed: %w", err)
	}
	return nil
}

func (d *DatabaseClient) ListUnlocked(ctx context.Context, bib models.BibNumber) ([]models.UnlockedPhoto, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT `+photoColumns+`, `+accessColumns+`
		FROM photo_access a
		JOIN photos p ON p.id = a.photo_id
		WHERE a.bib_number = $1 AND a.is_unlocked AND p.is_active
		ORDER BY p.photo_order, p.uploaded_at
	`, bib.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list unlocked photos: %w", err)
	}
	defer rows.Close()

	var out []models.UnlockedPhoto
	for rows.Next() {
		var s accessScan
		photo, err := scanPhoto(rows, s.dest()...)
		if err != nil {
			return nil, fmt.Errorf("failed to scan unlocked photo: %w", err)
		}
		out = append(out, models.UnlockedPhoto{Photo: photo, Access: s.result()})
	}
	return out, rows.Err()
}

func (d *DatabaseClient) RecordDownloads(ctx context.Context, accessIDs []uuid.UUID) error {
	if len(accessIDs) == 0 {
		return nil
	}
	_, err := d.db.ExecContext(ctx, `
		UPDATE photo_access
		SET download_count = download_count + 1, last_downloaded_at = NOW()
		WHERE id = ANY($1::uuid[])
	`, pq.Array(uuidStrings(accessIDs)))
	if err != nil {
		return fmt.Errorf("failed to record downloads: %w", err)
	}
	return nil
}

func (d *DatabaseClient) GetSurvey(ctx context.Context, bib models.BibNumber) (*models.SurveyResponse, error) {
	var (
		s   models.SurveyResponse
		b   string
		ids pq.StringArray
	)
	err := d.db.QueryRowContext(ctx, `
		SELECT id, bib_number, selected_photo_ids, runner_name, runner_email,
			social_media_preference, waiting_stops_buying, marketing_consent, completed_at
		FROM survey_responses
		WHERE bib_number = $1
	`, bib.String()).Scan(
		&s.ID, &b, &ids, &s.RunnerName, &s.RunnerEmail,
		&s.SocialMediaPreference, &s.WaitingStopsBuying, &s.MarketingConsent, &s.CompletedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get survey: %w", notFound(err))
	}
	s.BibNumber = models.BibNumber(b)
	if s.SelectedPhotoIDs, err = parseUUIDs(ids); err != nil {
		return nil, fmt.Errorf("failed to parse survey photo ids: %w", err)
	}
	return &s, nil
}

func (d *DatabaseClient) CreateSurvey(ctx context.Context, survey *models.SurveyResponse) (bool, error) {
	if survey.ID == uuid.Nil {
		survey.ID = uuid.New()
	}
	err := d.db.QueryRowContext(ctx, `
		INSERT INTO survey_responses (id, bib_number, selected_photo_ids, runner_name, runner_email,
			social_media_preference, waiting_stops_buying, marketing_consent)
		VALUES ($1, $2, $3::uuid[], $4, $5, $6, $7, $8)
		ON CONFLICT (bib_number) DO NOTHING
		RETURNING completed_at
	`, survey.ID, survey.BibNumber.String(), pq.Array(uuidStrings(survey.SelectedPhotoIDs)),
		survey.RunnerName, survey.RunnerEmail, survey.SocialMediaPreference,
		survey.WaitingStopsBuying, survey.MarketingConsent,
	).Scan(&survey.CompletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to create survey: %w", err)
	}
	return true, nil
}

const paymentColumns = `id, bib_number, selected_photo_ids, stripe_session_id, stripe_payment_intent_id,
	total_photos, price_per_photo, total_amount, currency, status, created_at, completed_at,
	email_sent, email_sent_at, email_attempts`

func scanPayment(row rowScanner) (*models.Payment, error) {
	var (
		p           models.Payment
		bib         string
		status      string
		ids         pq.StringArray
		sessionID   sql.NullString
		intentID    sql.NullString
		completedAt sql.NullTime
		emailSentAt sql.NullTime
	)
	err := row.Scan(
		&p.ID, &bib, &ids, &sessionID, &intentID,
		&p.TotalPhotos, &p.PricePerPhoto, &p.TotalAmount, &p.Currency, &status, &p.CreatedAt, &completedAt,
		&p.EmailSent, &emailSentAt, &p.EmailAttempts,
	)
	if err != nil {
		return nil, err
	}
	p.BibNumber = models.BibNumber(bib)
	p.Status = models.PaymentStatus(status)
	p.StripeSessionID = sessionID.String
	p.StripePaymentIntentID = intentID.String
	p.CompletedAt = timePtr(completedAt)
	p.EmailSentAt = timePtr(emailSentAt)
	if p.SelectedPhotoIDs, err = parseUUIDs(ids); err != nil {
		return nil, err
	}
	return &p, nil
}

func (d *DatabaseClient) CreatePayment(ctx context.Context, payment *models.Payment) error {
	if payment.ID == uuid.Nil {
		payment.ID = uuid.New()
	}
	if payment.Status == "" {
		payment.Status = models.PaymentPending
	}
	err := d.db.QueryRowContext(ctx, `
		INSERT INTO payments (id, bib_number, selected_photo_ids, stripe_session_id, total_photos,
			price_per_photo, total_amount, currency, status)
		VALUES ($1, $2, $3::uuid[], $4, $5, $6, $7, $8, $9)
		RETURNING created_at
	`, payment.ID, payment.BibNumber.String(), pq.Array(uuidStrings(payment.SelectedPhotoIDs)),
		nullString(payment.StripeSessionID), payment.TotalPhotos, payment.PricePerPhoto,
		payment.TotalAmount, payment.Currency, string(payment.Status),
	).Scan(&payment.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

func (d *DatabaseClient) GetPayment(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	p, err := scanPayment(d.db.QueryRowContext(ctx, `
		SELECT `+paymentColumns+` FROM payments WHERE id = $1
	`, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get payment: %w", notFound(err))
	}
	return p, nil
}

func (d *DatabaseClient) GetPaymentBySession(ctx context.Context, sessionID string) (*models.Payment, error) {
	p, err := scanPayment(d.db.QueryRowContext(ctx, `
		SELECT `+paymentColumns+` FROM payments WHERE stripe_session_id = $1
	`, sessionID))
	if err != nil {
		return nil, fmt.Errorf("failed to get payment: %w", notFound(err))
	}
	return p, nil
}

// CompletePayment locks the payment row, and if it is still pending marks it
// completed, unlocks every purchased photo and records one order item per
// photo at the price stored on the payment.
func (d *DatabaseClient) CompletePayment(ctx context.Context, lookup models.PaymentLookup, completion models.PaymentCompletion) (*models.Payment, bool, error) {
	var (
		payment      *models.Payment
		transitioned bool
	)
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		p, err := lockPayment(ctx, tx, lookup)
		if err != nil {
			return err
		}
		payment = p
		if p.Status != models.PaymentPending {
			return nil
		}
		if completion.BibNumber != "" && completion.BibNumber != p.BibNumber {
			return fmt.Errorf("payment %s: %w", p.ID, models.ErrBibMismatch)
		}

		photoIDs := completion.PhotoIDs
		if len(photoIDs) == 0 {
			photoIDs = p.SelectedPhotoIDs
		}
		ids := pq.Array(uuidStrings(photoIDs))

		var (
			completedAt time.Time
			intentID    sql.NullString
		)
		if err := tx.QueryRowContext(ctx, `
			UPDATE payments
			SET status = 'completed', completed_at = NOW(),
				stripe_payment_intent_id = COALESCE($2, stripe_payment_intent_id)
			WHERE id = $1
			RETURNING completed_at, stripe_payment_intent_id
		`, p.ID, nullString(completion.PaymentIntentID)).Scan(&completedAt, &intentID); err != nil {
			return fmt.Errorf("failed to complete payment: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO photo_access (photo_id, bib_number, payment_completed, is_unlocked, unlocked_at)
			SELECT p.id, p.bib_number, TRUE, TRUE, NOW()
			FROM photos p
			WHERE p.bib_number = $1 AND p.id = ANY($2::uuid[])
			ON CONFLICT (photo_id, bib_number) DO UPDATE
			SET payment_completed = TRUE,
				is_unlocked = TRUE,
				unlocked_at = COALESCE(photo_access.unlocked_at, EXCLUDED.unlocked_at)
		`, p.BibNumber.String(), ids); err != nil {
			return fmt.Errorf("failed to unlock photos: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO order_items (payment_id, photo_id, price_paid)
			SELECT $1::uuid, p.id, $3::integer
			FROM photos p
			WHERE p.bib_number = $2 AND p.id = ANY($4::uuid[])
			ON CONFLICT (payment_id, photo_id) DO NOTHING
		`, p.ID, p.BibNumber.String(), p.PricePerPhoto, ids); err != nil {
			return fmt.Errorf("failed to create order items: %w", err)
		}

		p.Status = models.PaymentCompleted
		p.CompletedAt = &completedAt
		p.StripePaymentIntentID = intentID.String
		transitioned = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return payment, transitioned, nil
}

func (d *DatabaseClient) TransitionPayment(ctx context.Context, lookup models.PaymentLookup, status models.PaymentStatus) (bool, error) {
	var changed bool
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		p, err := lockPayment(ctx, tx, lookup)
		if err != nil {
			return err
		}
		if p.Status != models.PaymentPending {
			return nil
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE payments
			SET status = $2, stripe_payment_intent_id = COALESCE($3, stripe_payment_intent_id)
			WHERE id = $1
		`, p.ID, string(status), nullString(lookup.PaymentIntentID)); err != nil {
			return fmt.Errorf("failed to update payment status: %w", err)
		}
		changed = true
		return nil
	})
	return changed, err
}

func lockPayment(ctx context.Context, tx *sql.Tx, lookup models.PaymentLookup) (*models.Payment, error) {
	if lookup.IsZero() {
		return nil, fmt.Errorf("failed to get payment: %w", models.ErrRecordNotFound)
	}
	p, err := scanPayment(tx.QueryRowContext(ctx, `
		SELECT `+paymentColumns+`
		FROM payments
		WHERE id = $1 OR stripe_session_id = $2 OR stripe_payment_intent_id = $3
		ORDER BY created_at
		LIMIT 1
		FOR UPDATE
	`, uuid.NullUUID{UUID: lookup.PaymentID, Valid: lookup.PaymentID != uuid.Nil},
		nullString(lookup.SessionID), nullString(lookup.PaymentIntentID)))
	if err != nil {
		return nil, fmt.Errorf("failed to get payment: %w", notFound(err))
	}
	return p, nil
}

func (d *DatabaseClient) ListOrderItems(ctx context.Context, paymentID uuid.UUID) ([]models.OrderItem, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, payment_id, photo_id, price_paid, created_at
		FROM order_items
		WHERE payment_id = $1
		ORDER BY created_at
	`, paymentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list order items: %w", err)
	}
	defer rows.Close()

	var items []models.OrderItem
	for rows.Next() {
		var item models.OrderItem
		if err := rows.Scan(&item.ID, &item.PaymentID, &item.PhotoID, &item.PricePaid, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (d *DatabaseClient) IncrementEmailAttempts(ctx context.Context, paymentID uuid.UUID, attempts int) error {
	_, err := d.db.ExecContext(ctx, `
		UPDATE payments SET email_attempts = email_attempts + $2 WHERE id = $1
	`, paymentID, attempts)
	if err != nil {
		return fmt.Errorf("failed to update email attempts: %w", err)
	}
	return nil
}

func (d *DatabaseClient) ClaimEmailSend(ctx context.Context, paymentID uuid.UUID, force bool) (bool, error) {
	res, err := d.db.ExecContext(ctx, `
		UPDATE payments SET email_sent = TRUE
		WHERE id = $1 AND (email_sent = FALSE OR $2)
	`, paymentID, force)
	if err != nil {
		return false, fmt.Errorf("failed to claim email send: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to claim email send: %w", err)
	}
	return n == 1, nil
}

func (d *DatabaseClient) ReleaseEmailClaim(ctx context.Context, paymentID uuid.UUID) error {
	_, err := d.db.ExecContext(ctx, `
		UPDATE payments SET email_sent = (email_sent_at IS NOT NULL) WHERE id = $1
	`, paymentID)
	if err != nil {
		return fmt.Errorf("failed to release email claim: %w", err)
	}
	return nil
}

func (d *DatabaseClient) MarkEmailSent(ctx context.Context, paymentID uuid.UUID) error {
	_, err := d.db.ExecContext(ctx, `
		UPDATE payments SET email_sent = TRUE, email_sent_at = NOW() WHERE id = $1
	`, paymentID)
	if err != nil {
		return fmt.Errorf("failed to mark email sent: %w", err)
	}
	return nil
}

func (d *DatabaseClient) ListBibSummaries(ctx context.Context) ([]models.BibSummary, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT p.bib_number,
			COUNT(*) AS photo_count,
			MAX(p.uploaded_at) AS latest_upload,
			EXISTS (SELECT 1 FROM survey_responses s WHERE s.bib_number = p.bib_number),
			EXISTS (SELECT 1 FROM payments pay WHERE pay.bib_number = p.bib_number),
			EXISTS (SELECT 1 FROM payments pay WHERE pay.bib_number = p.bib_number AND pay.status = 'completed'),
			COALESCE((SELECT SUM(pay.total_amount) FROM payments pay
				WHERE pay.bib_number = p.bib_number AND pay.status = 'completed'), 0)
		FROM photos p
		GROUP BY p.bib_number
		ORDER BY MAX(p.uploaded_at) DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list bibs: %w", err)
	}
	defer rows.Close()

	var out []models.BibSummary
	for rows.Next() {
		var (
			s      models.BibSummary
			bib    string
			latest sql.NullTime
		)
		if err := rows.Scan(&bib, &s.PhotoCount, &latest, &s.HasSurvey, &s.HasPayment, &s.IsPaid, &s.PaymentAmount); err != nil {
			return nil, fmt.Errorf("failed to scan bib summary: %w", err)
		}
		s.BibNumber = models.BibNumber(bib)
		s.LatestUpload = timePtr(latest)
		out = append(out, s)
	}
	return out, rows.Err()
}

func (d *DatabaseClient) DeleteBib(ctx context.Context, bib models.BibNumber) ([]models.Photo, error) {
	photos, err := d.ListPhotosByBib(ctx, bib)
	if err != nil {
		return nil, err
	}

	err = d.withTx(ctx, func(tx *sql.Tx) error {
		for _, stmt := range []string{
			`DELETE FROM order_items WHERE photo_id IN (SELECT id FROM photos WHERE bib_number = $1)`,
			`DELETE FROM photo_selections WHERE bib_number = $1`,
			`DELETE FROM photo_access WHERE bib_number = $1`,
			`DELETE FROM payments WHERE bib_number = $1`,
			`DELETE FROM survey_responses WHERE bib_number = $1`,
			`DELETE FROM photos WHERE bib_number = $1`,
		} {
			if _, err := tx.ExecContext(ctx, stmt, bib.String()); err != nil {
				return fmt.Errorf("failed to delete bib data: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return photos, nil
}

func (d *DatabaseClient) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return models.ErrRecordNotFound
	}
	return err
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

func parseUUIDs(values []string) ([]uuid.UUID, error) {
	out := make([]uuid.UUID, 0, len(values))
	for _, v := range values {
		id, err := uuid.Parse(v)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}
