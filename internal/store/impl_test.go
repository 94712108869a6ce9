package store

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"reflect"
	"testing"

	"github.com/oakmere/wallcal/pkg/models"
)

type testStore struct {
	store Store
	dir   string
}

func (t *testStore) Cleanup() error {
	t.store.Close()
	return os.RemoveAll(t.dir)
}

func createTestStore(ctx context.Context) (*testStore, error) {
	dir, err := os.MkdirTemp(os.TempDir(), "wallcal_store_test_*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir for test: %w", err)
	}

	s, err := New(Config{
		Logger: slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelError,
		})),
		Directory: dir,
		AppCtx:    ctx,
	})
	if err != nil {
		return nil, err
	}
	return &testStore{
		store: s,
		dir:   dir, // so we can clean up after
	}, nil
}

func strPtr(s string) *string { return &s }

func validDocument() *models.CalendarDocument {
	return &models.CalendarDocument{
		DayData: map[string]models.DayEntry{
			"2030-08-15": {
				Day:       15,
				Month:     "August",
				Year:      2030,
				Locations: "Coast",
				Details:   "<p>Long weekend</p>",
				ColorID:   "cat_1",
				Icons:     []models.ActivityIcon{{Type: "icon", Value: "Tent", Color: "text-green-600"}},
			},
		},
		KeyItems: []models.KeyItem{
			{ID: "cat_1", Label: "Vacation", IsColorKey: true, ColorCode: "orange", ShowCount: true},
			{ID: "icon_1", Label: "Camping", Icon: "Tent", IconColor: "text-green-600"},
		},
		LastUpdatedText: strPtr("updated Aug 1"),
	}
}

// -------------------------- TESTS

func TestStore_WriteReadRoundTrip(t *testing.T) {
	ctx := context.Background()
	ts, err := createTestStore(ctx)
	if err != nil {
		t.Fatalf("Failed to create test store: %v", err)
	}
	defer ts.Cleanup()

	doc := validDocument()
	if err := ts.store.Write(2030, doc); err != nil {
		t.Fatalf("Write() error = %v, wantErr nil", err)
	}

	got, err := ts.store.Read(2030)
	if err != nil {
		t.Fatalf("Read() error = %v, wantErr nil", err)
	}
	if !reflect.DeepEqual(got, doc) {
		t.Errorf("Read() got = %+v, want %+v", got, doc)
	}
}

func TestStore_ReadUnwrittenYear(t *testing.T) {
	ctx := context.Background()
	ts, err := createTestStore(ctx)
	if err != nil {
		t.Fatalf("Failed to create test store: %v", err)
	}
	defer ts.Cleanup()

	_, err = ts.store.Read(1999)
	if err == nil {
		t.Fatal("Read() expected error for unwritten year, got nil")
	}
	if !IsErrNotFound(err) {
		t.Errorf("Read() expected ErrNotFound, got %T", err)
	}
}

func TestStore_InvalidWriteLeavesPriorDocument(t *testing.T) {
	ctx := context.Background()
	ts, err := createTestStore(ctx)
	if err != nil {
		t.Fatalf("Failed to create test store: %v", err)
	}
	defer ts.Cleanup()

	doc := validDocument()
	if err := ts.store.Write(2030, doc); err != nil {
		t.Fatalf("Setup: Write() error = %v", err)
	}

	t.Run("missing keyItems rejected", func(t *testing.T) {
		bad := &models.CalendarDocument{
			DayData:         map[string]models.DayEntry{},
			LastUpdatedText: strPtr("newer"),
		}
		err := ts.store.Write(2030, bad)
		if err == nil {
			t.Fatal("Write() expected validation error, got nil")
		}

		got, err := ts.store.Read(2030)
		if err != nil {
			t.Fatalf("Read() error = %v", err)
		}
		if !reflect.DeepEqual(got, doc) {
			t.Errorf("prior document changed after rejected write: got %+v", got)
		}
	})

	t.Run("nil document rejected", func(t *testing.T) {
		if err := ts.store.Write(2030, nil); err == nil {
			t.Error("Write() expected error for nil document, got nil")
		}
	})
}

func TestStore_WholeDocumentReplacement(t *testing.T) {
	ctx := context.Background()
	ts, err := createTestStore(ctx)
	if err != nil {
		t.Fatalf("Failed to create test store: %v", err)
	}
	defer ts.Cleanup()

	first := validDocument()
	if err := ts.store.Write(2030, first); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	// A replacement carrying fewer entries must win wholesale; no merging.
	second := &models.CalendarDocument{
		DayData:         map[string]models.DayEntry{},
		KeyItems:        []models.KeyItem{},
		LastUpdatedText: strPtr("cleared"),
	}
	if err := ts.store.Write(2030, second); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got, err := ts.store.Read(2030)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if len(got.DayData) != 0 {
		t.Errorf("DayData = %v, want empty after replacement", got.DayData)
	}
	if *got.LastUpdatedText != "cleared" {
		t.Errorf("LastUpdatedText = %q, want cleared", *got.LastUpdatedText)
	}
}

func TestStore_YearsArePartitioned(t *testing.T) {
	ctx := context.Background()
	ts, err := createTestStore(ctx)
	if err != nil {
		t.Fatalf("Failed to create test store: %v", err)
	}
	defer ts.Cleanup()

	if err := ts.store.Write(2030, validDocument()); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	if _, err := ts.store.Read(2031); !IsErrNotFound(err) {
		t.Errorf("Read(2031) expected ErrNotFound, got %v", err)
	}
}

func TestStore_CorruptRecordReadsAsAbsent(t *testing.T) {
	ctx := context.Background()
	ts, err := createTestStore(ctx)
	if err != nil {
		t.Fatalf("Failed to create test store: %v", err)
	}
	defer ts.Cleanup()

	ds := ts.store.(*docStore)
	if err := ds.setRaw(yearKey(2032), []byte("{definitely not json")); err != nil {
		t.Fatalf("setRaw() error = %v", err)
	}

	_, err = ts.store.Read(2032)
	if !IsErrNotFound(err) {
		t.Errorf("Read() of corrupt record expected ErrNotFound, got %v", err)
	}
}

func TestStore_LegacyDayEntriesNormalizedOnRead(t *testing.T) {
	ctx := context.Background()
	ts, err := createTestStore(ctx)
	if err != nil {
		t.Fatalf("Failed to create test store: %v", err)
	}
	defer ts.Cleanup()

	ds := ts.store.(*docStore)
	legacy := `{
		"dayData": {"2024-05-01": {"day": 1, "month": "May", "year": 2024, "content": [{"type":"icon","value":"Star"}]}},
		"keyItems": [],
		"lastUpdatedText": "legacy"
	}`
	if err := ds.setRaw(yearKey(2024), []byte(legacy)); err != nil {
		t.Fatalf("setRaw() error = %v", err)
	}

	got, err := ts.store.Read(2024)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	entry := got.DayData["2024-05-01"]
	if len(entry.Icons) != 1 || entry.Icons[0].Value != "Star" {
		t.Errorf("legacy content not migrated to icons: %+v", entry)
	}
}

func TestStore_ConfigRoundTrip(t *testing.T) {
	ctx := context.Background()
	ts, err := createTestStore(ctx)
	if err != nil {
		t.Fatalf("Failed to create test store: %v", err)
	}
	defer ts.Cleanup()

	if _, err := ts.store.ReadConfig(); !IsErrNotFound(err) {
		t.Errorf("ReadConfig() before write expected ErrNotFound, got %v", err)
	}

	header := "Summer House"
	cfg := &models.Configuration{HeaderName: &header, Timezone: "Europe/Stockholm"}
	if err := ts.store.WriteConfig(cfg); err != nil {
		t.Fatalf("WriteConfig() error = %v", err)
	}

	got, err := ts.store.ReadConfig()
	if err != nil {
		t.Fatalf("ReadConfig() error = %v", err)
	}
	if !reflect.DeepEqual(got, cfg) {
		t.Errorf("ReadConfig() got = %+v, want %+v", got, cfg)
	}
}

func TestStore_ConcurrentWritesSameYear(t *testing.T) {
	ctx := context.Background()
	ts, err := createTestStore(ctx)
	if err != nil {
		t.Fatalf("Failed to create test store: %v", err)
	}
	defer ts.Cleanup()

	done := make(chan error, 10)
	for i := 0; i < 10; i++ {
		go func(i int) {
			doc := validDocument()
			doc.LastUpdatedText = strPtr(fmt.Sprintf("writer %d", i))
			done <- ts.store.Write(2030, doc)
		}(i)
	}
	for i := 0; i < 10; i++ {
		if err := <-done; err != nil {
			t.Errorf("concurrent Write() error = %v", err)
		}
	}

	// Whichever writer won, the stored record must be one complete
	// document, never a mix.
	got, err := ts.store.Read(2030)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if got.LastUpdatedText == nil || len(*got.LastUpdatedText) == 0 {
		t.Error("stored document is incomplete after concurrent writes")
	}
}
