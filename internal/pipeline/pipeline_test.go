package pipeline

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/cnoret/fraudpipe/internal/align"
	"github.com/cnoret/fraudpipe/internal/alert"
	"github.com/cnoret/fraudpipe/internal/domain"
	"github.com/cnoret/fraudpipe/internal/feed"
	"github.com/cnoret/fraudpipe/internal/scoring"
	"github.com/cnoret/fraudpipe/internal/store"
)

// captureNotifier records fired alert signals.
type captureNotifier struct {
	signals []alert.Signal
}

func (n *captureNotifier) Notify(ctx context.Context, sig alert.Signal) error {
	n.signals = append(n.signals, sig)
	return nil
}

func newSQLiteStore(t *testing.T) store.TransactionStore {
	t.Helper()
	st, err := store.OpenSQL("sqlite3", filepath.Join(t.TempDir(), "pipeline.db"))
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	if err := st.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("ensuring schema: %v", err)
	}
	return st
}

func newTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func buildPipeline(t *testing.T, feedSrv, modelSrv *httptest.Server, st store.TransactionStore, notifier alert.Notifier, threshold float64) *Pipeline {
	t.Helper()
	scorer := scoring.NewClient(modelSrv.URL+"/predict", modelSrv.URL+"/health", 5*time.Second)
	return NewScoringPipeline(
		feed.NewClient(feedSrv.URL, 5*time.Second),
		align.New(scorer, align.DefaultTable()),
		scorer,
		st,
		notifier,
		nil,
		threshold,
	)
}

func TestPipeline_EndToEnd(t *testing.T) {
	feedSrv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"columns":["amt","merchant","trans_num"],"data":[[250.0,"Acme","tx_42"]]}`))
	})
	modelSrv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			w.Write([]byte(`{"expected_numeric":["amt"],"expected_categorical":["merchant"]}`))
		case "/predict":
			w.Write([]byte(`{"probability":0.002,"prediction":0}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	st := newSQLiteStore(t)
	notifier := &captureNotifier{}
	p := buildPipeline(t, feedSrv, modelSrv, st, notifier, 0.001)

	state, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if state.TransactionID != "tx_42" {
		t.Errorf("TransactionID = %q, want tx_42", state.TransactionID)
	}

	rec, err := st.Get(context.Background(), "tx_42")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if rec.Amount != 250.0 {
		t.Errorf("amount = %v, want 250.0", rec.Amount)
	}
	if rec.Merchant != "Acme" {
		t.Errorf("merchant = %q, want Acme", rec.Merchant)
	}
	if rec.FraudProbability != 0.002 {
		t.Errorf("fraud_probability = %v, want 0.002", rec.FraudProbability)
	}
	if rec.Prediction != 0 {
		t.Errorf("prediction = %d, want 0", rec.Prediction)
	}
	if rec.UpdatedAt != nil {
		t.Errorf("updated_at = %v on first write, want nil", rec.UpdatedAt)
	}

	// 0.002 exceeds the 0.001 threshold: exactly one advisory alert.
	if len(notifier.signals) != 1 {
		t.Fatalf("alerts fired = %d, want 1", len(notifier.signals))
	}
	sig := notifier.signals[0]
	if sig.TransactionID != "tx_42" || sig.Probability != 0.002 || sig.Amount != 250.0 {
		t.Errorf("alert signal = %+v", sig)
	}
	if !state.Alerted {
		t.Error("state.Alerted = false, want true")
	}
}

func TestPipeline_RetryOfWholeRunIsIdempotent(t *testing.T) {
	feedSrv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"columns":["amt","merchant","trans_num"],"data":[[99.0,"Diner","tx_7"]]}`))
	})
	modelSrv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			w.Write([]byte(`{"expected_numeric":["amt"],"expected_categorical":["merchant"]}`))
		default:
			w.Write([]byte(`{"probability":0.0001,"prediction":0}`))
		}
	})

	st := newSQLiteStore(t)
	notifier := &captureNotifier{}
	p := buildPipeline(t, feedSrv, modelSrv, st, notifier, 0.001)

	for i := 0; i < 2; i++ {
		if _, err := p.Run(context.Background()); err != nil {
			t.Fatalf("run %d failed: %v", i+1, err)
		}
	}

	rec, err := st.Get(context.Background(), "tx_7")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if rec.Amount != 99.0 || rec.FraudProbability != 0.0001 {
		t.Errorf("stored state drifted across replays: %+v", rec)
	}
	if rec.UpdatedAt == nil {
		t.Error("updated_at not set by the replayed run")
	}
	if len(notifier.signals) != 0 {
		t.Errorf("alerts fired = %d below threshold, want 0", len(notifier.signals))
	}
}

func TestPipeline_SchemaDiscoveryFailureStillScores(t *testing.T) {
	feedSrv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"columns":["amt","trans_num"],"data":[[12.0,"tx_9"]]}`))
	})
	modelSrv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"probability":0.3,"prediction":1}`))
	})

	st := newSQLiteStore(t)
	p := buildPipeline(t, feedSrv, modelSrv, st, &captureNotifier{}, 0.5)

	state, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed despite recoverable schema discovery error: %v", err)
	}
	if state.TransactionID != "tx_9" {
		t.Errorf("TransactionID = %q, want tx_9", state.TransactionID)
	}
	// Fallback schema covers every column, so the payload was complete.
	if len(state.Payload) != len(align.FallbackSchema()) {
		t.Errorf("payload has %d columns, want full fallback schema", len(state.Payload))
	}
}

func TestPipeline_FetchFailureCommitsNothing(t *testing.T) {
	feedSrv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	modelSrv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"probability":0.3,"prediction":1}`))
	})

	st := newSQLiteStore(t)
	p := buildPipeline(t, feedSrv, modelSrv, st, &captureNotifier{}, 0.5)

	_, err := p.Run(context.Background())
	if !errors.Is(err, feed.ErrUnavailable) {
		t.Fatalf("Run error = %v, want feed.ErrUnavailable", err)
	}
}

func TestRecordFromRun_Fallbacks(t *testing.T) {
	tests := []struct {
		name         string
		raw          domain.RawTransaction
		wantIDPrefix string
		wantMerchant string
		wantAmount   float64
	}{
		{
			name:         "full record",
			raw:          domain.RawTransaction{"trans_num": "tx_1", "merchant": "Acme", "amt": 5.0},
			wantIDPrefix: "tx_1",
			wantMerchant: "Acme",
			wantAmount:   5.0,
		},
		{
			name:         "missing identity synthesizes from wall clock",
			raw:          domain.RawTransaction{"amt": 5.0},
			wantIDPrefix: "tx_",
			wantMerchant: "Unknown",
			wantAmount:   5.0,
		},
		{
			name:         "numeric trans_num is stringified",
			raw:          domain.RawTransaction{"trans_num": float64(123), "amt": 1.0},
			wantIDPrefix: "123",
			wantMerchant: "Unknown",
			wantAmount:   1.0,
		},
		{
			name:         "empty record",
			raw:          domain.RawTransaction{},
			wantIDPrefix: "tx_",
			wantMerchant: "Unknown",
			wantAmount:   0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := recordFromRun(tt.raw, domain.ScoreResult{Probability: 0.5, Prediction: 1})
			if len(rec.TransactionID) < len(tt.wantIDPrefix) || rec.TransactionID[:len(tt.wantIDPrefix)] != tt.wantIDPrefix {
				t.Errorf("TransactionID = %q, want prefix %q", rec.TransactionID, tt.wantIDPrefix)
			}
			if rec.Merchant != tt.wantMerchant {
				t.Errorf("Merchant = %q, want %q", rec.Merchant, tt.wantMerchant)
			}
			if rec.Amount != tt.wantAmount {
				t.Errorf("Amount = %v, want %v", rec.Amount, tt.wantAmount)
			}
		})
	}
}
