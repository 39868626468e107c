package supabase_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"race-photos-backend/internal/database"
	"race-photos-backend/internal/models"
	"race-photos-backend/internal/supabase"
)

// openTestDB connects to TEST_DATABASE_URL and applies migrations. Tests are
// skipped when it is unset.
func openTestDB(t *testing.T) *supabase.DatabaseClient {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	db, err := supabase.NewDatabaseClient(url)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, database.NewMigrator(db.DB()).Run(context.Background()))
	return db
}

func testBib(t *testing.T, db *supabase.DatabaseClient) models.BibNumber {
	t.Helper()
	bib := models.BibNumber(fmt.Sprintf("IT-%d", time.Now().UnixNano()%1_000_000_000))
	t.Cleanup(func() {
		_, _ = db.DeleteBib(context.Background(), bib)
	})
	return bib
}

func seedPhotos(t *testing.T, db *supabase.DatabaseClient, bib models.BibNumber, n int) []uuid.UUID {
	t.Helper()
	ctx := context.Background()
	ids := make([]uuid.UUID, 0, n)
	for i := 0; i < n; i++ {
		order, err := db.NextPhotoOrder(ctx, bib)
		require.NoError(t, err)
		photo := &models.Photo{
			BibNumber:  bib,
			PreviewURL: fmt.Sprintf("https://storage.test/%s-%d.jpg", bib, i),
			HighresURL: fmt.Sprintf("https://storage.test/%s-%d.jpg", bib, i),
			PhotoOrder: order,
			IsActive:   true,
		}
		require.NoError(t, db.CreatePhoto(ctx, photo))
		ids = append(ids, photo.ID)
	}
	require.NoError(t, db.EnsureAccess(ctx, bib, ids))
	return ids
}

func TestDatabaseSelections(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	bib := testBib(t, db)
	ids := seedPhotos(t, db, bib, 3)

	require.NoError(t, db.UpsertSelection(ctx, bib, ids[0], false))
	require.NoError(t, db.UpsertSelection(ctx, bib, ids[0], true))
	require.NoError(t, db.ReplaceSelections(ctx, bib, ids[1:2]))

	selections, err := db.ListSelections(ctx, bib)
	require.NoError(t, err)
	selected := 0
	for _, s := range selections {
		if s.IsSelected {
			selected++
			assert.Equal(t, ids[1], s.PhotoID)
		}
	}
	assert.Equal(t, 1, selected)
}

func TestDatabaseSurveyIsCreatedOnce(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	bib := testBib(t, db)
	ids := seedPhotos(t, db, bib, 1)

	survey := &models.SurveyResponse{
		BibNumber:             bib,
		SelectedPhotoIDs:      ids,
		RunnerName:            "Jane Runner",
		RunnerEmail:           "jane@example.com",
		SocialMediaPreference: models.SocialMediaAction,
		WaitingStopsBuying:    models.WaitingStopsBuyingNo,
	}
	created, err := db.CreateSurvey(ctx, survey)
	require.NoError(t, err)
	assert.True(t, created)

	again := *survey
	again.ID = uuid.Nil
	again.RunnerName = "Someone Else"
	created, err = db.CreateSurvey(ctx, &again)
	require.NoError(t, err)
	assert.False(t, created)

	stored, err := db.GetSurvey(ctx, bib)
	require.NoError(t, err)
	assert.Equal(t, "Jane Runner", stored.RunnerName)

	require.NoError(t, db.MarkSurveyCompleted(ctx, bib, ids))
	access, err := db.ListAccess(ctx, bib)
	require.NoError(t, err)
	require.Len(t, access, 1)
	assert.True(t, access[0].SurveyCompleted)
	assert.False(t, access[0].IsUnlocked)
}

func TestDatabaseCompletePaymentOnce(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	bib := testBib(t, db)
	ids := seedPhotos(t, db, bib, 2)

	sessionID := "cs_it_" + uuid.NewString()
	payment := &models.Payment{
		BibNumber:        bib,
		SelectedPhotoIDs: ids,
		StripeSessionID:  sessionID,
		TotalPhotos:      2,
		PricePerPhoto:    1299,
		TotalAmount:      2598,
		Currency:         "usd",
	}
	require.NoError(t, db.CreatePayment(ctx, payment))

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		changed int
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok, err := db.CompletePayment(ctx, models.PaymentLookup{SessionID: sessionID}, models.PaymentCompletion{
				BibNumber:       bib,
				PhotoIDs:        ids,
				PaymentIntentID: "pi_it",
			})
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				changed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, changed)

	stored, err := db.GetPaymentBySession(ctx, sessionID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentCompleted, stored.Status)
	assert.Equal(t, "pi_it", stored.StripePaymentIntentID)

	items, err := db.ListOrderItems(ctx, payment.ID)
	require.NoError(t, err)
	assert.Len(t, items, 2)

	unlocked, err := db.ListUnlocked(ctx, bib)
	require.NoError(t, err)
	require.Len(t, unlocked, 2)

	require.NoError(t, db.RecordDownloads(ctx, []uuid.UUID{unlocked[0].Access.ID}))
	access, err := db.ListAccess(ctx, bib)
	require.NoError(t, err)
	downloads := 0
	for _, a := range access {
		downloads += a.DownloadCount
	}
	assert.Equal(t, 1, downloads)
}

func TestDatabaseCompletePaymentBibMismatch(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	bib := testBib(t, db)
	ids := seedPhotos(t, db, bib, 1)

	payment := &models.Payment{
		BibNumber:        bib,
		SelectedPhotoIDs: ids,
		StripeSessionID:  "cs_it_" + uuid.NewString(),
		TotalPhotos:      1,
		PricePerPhoto:    1499,
		TotalAmount:      1499,
		Currency:         "usd",
	}
	require.NoError(t, db.CreatePayment(ctx, payment))

	_, _, err := db.CompletePayment(ctx, models.PaymentLookup{PaymentID: payment.ID}, models.PaymentCompletion{
		BibNumber: "OTHER",
		PhotoIDs:  ids,
	})
	assert.True(t, errors.Is(err, models.ErrBibMismatch))

	_, _, err = db.CompletePayment(ctx, models.PaymentLookup{SessionID: "cs_missing"}, models.PaymentCompletion{})
	assert.True(t, errors.Is(err, models.ErrRecordNotFound))
}

func TestDatabaseEmailClaim(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	bib := testBib(t, db)
	ids := seedPhotos(t, db, bib, 1)

	payment := &models.Payment{
		BibNumber:        bib,
		SelectedPhotoIDs: ids,
		StripeSessionID:  "cs_it_" + uuid.NewString(),
		TotalPhotos:      1,
		PricePerPhoto:    1499,
		TotalAmount:      1499,
		Currency:         "usd",
	}
	require.NoError(t, db.CreatePayment(ctx, payment))

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		claimed int
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := db.ClaimEmailSend(ctx, payment.ID, false)
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				claimed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, claimed)

	require.NoError(t, db.ReleaseEmailClaim(ctx, payment.ID))
	stored, err := db.GetPayment(ctx, payment.ID)
	require.NoError(t, err)
	assert.False(t, stored.EmailSent)

	ok, err := db.ClaimEmailSend(ctx, payment.ID, false)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, db.MarkEmailSent(ctx, payment.ID))

	ok, err = db.ClaimEmailSend(ctx, payment.ID, true)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, db.ReleaseEmailClaim(ctx, payment.ID))
	stored, err = db.GetPayment(ctx, payment.ID)
	require.NoError(t, err)
	assert.True(t, stored.EmailSent)
}
