package cache

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kjstillabower/travel-wardrobe-service/internal/models"
)

type mockClimateLoader struct {
	mu       sync.Mutex
	failFor  map[string]error
	seen     []string
	inFlight int32
	maxSeen  int32
	delay    time.Duration
}

func (m *mockClimateLoader) GetClimate(ctx context.Context, city string) (models.ClimateRecord, error) {
	n := atomic.AddInt32(&m.inFlight, 1)
	defer atomic.AddInt32(&m.inFlight, -1)
	for {
		cur := atomic.LoadInt32(&m.maxSeen)
		if n <= cur || atomic.CompareAndSwapInt32(&m.maxSeen, cur, n) {
			break
		}
	}
	if m.delay > 0 {
		time.Sleep(m.delay)
	}

	m.mu.Lock()
	m.seen = append(m.seen, city)
	m.mu.Unlock()

	if err := m.failFor[city]; err != nil {
		return models.ClimateRecord{}, err
	}
	return models.ClimateRecord{City: city}, nil
}

// TestCacheWarmer_Warm_Success verifies every city is loaded.
func TestCacheWarmer_Warm_Success(t *testing.T) {
	loader := &mockClimateLoader{}
	warmer := NewCacheWarmer(loader, nil, 2)

	if err := warmer.Warm(context.Background(), []string{"karachi", "tokyo", "dubai"}); err != nil {
		t.Fatalf("Warm() error = %v, want nil", err)
	}
	if len(loader.seen) != 3 {
		t.Errorf("loaded %d cities, want 3", len(loader.seen))
	}
}

// TestCacheWarmer_Warm_EmptyCities verifies nil and empty lists are no-ops.
func TestCacheWarmer_Warm_EmptyCities(t *testing.T) {
	warmer := NewCacheWarmer(&mockClimateLoader{}, nil, 0)
	ctx := context.Background()

	if err := warmer.Warm(ctx, nil); err != nil {
		t.Fatalf("Warm(nil) error = %v, want nil", err)
	}
	if err := warmer.Warm(ctx, []string{}); err != nil {
		t.Fatalf("Warm(empty) error = %v, want nil", err)
	}
}

// TestCacheWarmer_Warm_PartialFailure verifies one failing city does not stop
// the rest and is reported in the joined error.
func TestCacheWarmer_Warm_PartialFailure(t *testing.T) {
	errDown := errors.New("wikipedia down")
	loader := &mockClimateLoader{failFor: map[string]error{"lima": errDown}}
	core, logs := observer.New(zap.InfoLevel)
	warmer := NewCacheWarmer(loader, zap.New(core), 4)

	err := warmer.Warm(context.Background(), []string{"karachi", "lima", "tokyo"})
	if !errors.Is(err, errDown) {
		t.Fatalf("Warm() error = %v, want wrapped errDown", err)
	}
	if !strings.Contains(err.Error(), "warm lima") {
		t.Errorf("Warm() error = %q, want city named", err)
	}
	if len(loader.seen) != 3 {
		t.Errorf("loaded %d cities, want 3", len(loader.seen))
	}

	done := logs.FilterMessage("cache warming complete").All()
	if len(done) != 1 {
		t.Fatalf("completion logs = %d, want 1", len(done))
	}
	if got := done[0].ContextMap()["errors"]; got != int64(1) {
		t.Errorf("logged errors = %v, want 1", got)
	}
}

// TestCacheWarmer_Warm_Concurrency verifies the in-flight limit is honored.
func TestCacheWarmer_Warm_Concurrency(t *testing.T) {
	loader := &mockClimateLoader{delay: 20 * time.Millisecond}
	warmer := NewCacheWarmer(loader, nil, 2)

	cities := []string{"a", "b", "c", "d", "e", "f"}
	if err := warmer.Warm(context.Background(), cities); err != nil {
		t.Fatalf("Warm() error = %v", err)
	}
	if peak := atomic.LoadInt32(&loader.maxSeen); peak > 2 {
		t.Errorf("max in flight = %d, want <= 2", peak)
	}
}

// TestCacheWarmer_WarmPeriodic_StopsOnCancel verifies the loop exits with the context error.
func TestCacheWarmer_WarmPeriodic_StopsOnCancel(t *testing.T) {
	loader := &mockClimateLoader{}
	warmer := NewCacheWarmer(loader, nil, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := warmer.WarmPeriodic(ctx, []string{"karachi"}, 10*time.Millisecond)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("WarmPeriodic() error = %v, want DeadlineExceeded", err)
	}
	loader.mu.Lock()
	defer loader.mu.Unlock()
	if len(loader.seen) < 2 {
		t.Errorf("warm runs = %d, want at least 2", len(loader.seen))
	}
}
