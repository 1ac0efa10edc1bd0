package scoring

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/cnoret/fraudpipe/internal/domain"
)

func newScoreClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, srv.URL, 5*time.Second)
}

func TestScore_RepairsSloppyResponses(t *testing.T) {
	tests := []struct {
		name string
		body string
		want domain.ScoreResult
	}{
		{
			name: "well formed",
			body: `{"probability":0.002,"prediction":0}`,
			want: domain.ScoreResult{Probability: 0.002, Prediction: 0},
		},
		{
			name: "probability above one is clamped",
			body: `{"probability":1.7,"prediction":1}`,
			want: domain.ScoreResult{Probability: 1.0, Prediction: 1},
		},
		{
			name: "negative probability is clamped",
			body: `{"probability":-0.4,"prediction":0}`,
			want: domain.ScoreResult{Probability: 0, Prediction: 0},
		},
		{
			name: "nonbinary prediction coerces to 1",
			body: `{"probability":0.9,"prediction":3}`,
			want: domain.ScoreResult{Probability: 0.9, Prediction: 1},
		},
		{
			name: "missing prediction defaults to 0",
			body: `{"probability":0.5}`,
			want: domain.ScoreResult{Probability: 0.5, Prediction: 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newScoreClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			})

			got, err := client.Score(context.Background(), domain.AlignedPayload{"amt": 1.0})
			if err != nil {
				t.Fatalf("Score failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("Score = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestScore_SendsPayloadUnderDataKey(t *testing.T) {
	var gotBody map[string]map[string]interface{}
	client := newScoreClient(t, func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decoding request body: %v", err)
		}
		w.Write([]byte(`{"probability":0.1,"prediction":0}`))
	})

	payload := domain.AlignedPayload{"amt": 250.0, "merchant": "Acme"}
	if _, err := client.Score(context.Background(), payload); err != nil {
		t.Fatalf("Score failed: %v", err)
	}
	if !reflect.DeepEqual(gotBody["data"], map[string]interface{}{"amt": 250.0, "merchant": "Acme"}) {
		t.Errorf("request data = %v, want the aligned payload", gotBody["data"])
	}
}

func TestScore_ErrorClassification(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		wantErr error
	}{
		{
			name: "missing probability",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"prediction":1}`))
			},
			wantErr: ErrInvalidResponse,
		},
		{
			name: "undecodable body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`probability: high`))
			},
			wantErr: ErrInvalidResponse,
		},
		{
			name: "endpoint error status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
			},
			wantErr: ErrUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newScoreClient(t, tt.handler)
			_, err := client.Score(context.Background(), domain.AlignedPayload{})
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Score error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestExpectedColumns_NumericThenCategorical(t *testing.T) {
	client := newScoreClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"expected_numeric":["amt","unix_time"],"expected_categorical":["merchant","category"]}`))
	})

	cols, err := client.ExpectedColumns(context.Background())
	if err != nil {
		t.Fatalf("ExpectedColumns failed: %v", err)
	}
	want := []string{"amt", "unix_time", "merchant", "category"}
	if !reflect.DeepEqual(cols, want) {
		t.Errorf("ExpectedColumns = %v, want %v", cols, want)
	}
}

func TestExpectedColumns_EmptyAnswerIsError(t *testing.T) {
	client := newScoreClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"healthy"}`))
	})

	if _, err := client.ExpectedColumns(context.Background()); err == nil {
		t.Error("ExpectedColumns succeeded on an answer with no columns")
	}
}
