// Package loadtest hammers the remote store with concurrent like toggles.
//
// A like storm runs N clients, each with its own liker key, toggling likes
// on a small set of posts. Every client remembers what it believes its own
// membership is; because no two clients share a key, the final liked_by
// arrays must match those beliefs exactly. Any lost compare-and-swap update
// shows up as a mismatch.
package loadtest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math/rand"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/campuscircle/campusfeed/internal/feed/db"
	"github.com/campuscircle/campusfeed/internal/feed/gateway"
)

// Bench is a populated database ready for a storm.
type Bench struct {
	DB      *db.DB
	Gateway *gateway.Gateway
	PostIDs []string

	mu     sync.Mutex
	belief map[string]map[string]bool // post -> key -> liked
}

// LatencyStats captures per-toggle latency.
type LatencyStats struct {
	Min          time.Duration
	Max          time.Duration
	Mean         time.Duration
	P50          time.Duration // Median
	P95          time.Duration
	P99          time.Duration
	TotalQueries int
	Errors       int
	Conflicts    int
	Durations    []time.Duration
}

// Setup opens dsn, initializes the schema and seeds numPosts anonymous
// posts. An existing database keeps its rows; seeded ids are stable so a
// rerun reuses them.
func Setup(dsn string, numPosts int) (*Bench, error) {
	if numPosts <= 0 {
		return nil, fmt.Errorf("numPosts must be positive")
	}

	database, err := db.Open(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := database.InitSchema(); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	b := &Bench{
		DB:      database,
		Gateway: gateway.New(database, nil, gateway.Config{Logger: log.New(io.Discard, "", 0)}),
		PostIDs: make([]string, 0, numPosts),
		belief:  make(map[string]map[string]bool),
	}

	ctx := context.Background()
	base := time.Now().Add(-time.Duration(numPosts) * time.Minute)
	for i := 0; i < numPosts; i++ {
		id := fmt.Sprintf("bench-%04d", i)
		row := &db.PostRow{
			ID:        id,
			Content:   fmt.Sprintf("Load test post %d", i),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
			Tag:       "General",
		}
		if err := database.InsertPost(ctx, row); err != nil {
			_ = database.Close()
			return nil, fmt.Errorf("failed to seed post %s: %w", id, err)
		}
		b.PostIDs = append(b.PostIDs, id)
		b.belief[id] = make(map[string]bool)
	}

	// keys left over from a previous run on the same database
	for _, id := range b.PostIDs {
		row, err := database.GetPost(ctx, id)
		if err != nil {
			_ = database.Close()
			return nil, fmt.Errorf("failed to read post %s: %w", id, err)
		}
		for _, key := range row.LikedBy {
			b.belief[id][key] = true
		}
	}

	return b, nil
}

// Close closes the database connection.
func (b *Bench) Close() error {
	if b.DB != nil {
		return b.DB.Close()
	}
	return nil
}

// ClientKey is the liker key of storm client i.
func ClientKey(i int) string {
	return fmt.Sprintf("bench-client-%03d", i)
}

// RunLikeStorm runs numClients concurrent clients, each performing
// togglesPerClient toggles on randomly chosen posts. Toggles that lose every
// compare-and-swap round are counted as conflicts and leave the client's
// belief untouched.
func (b *Bench) RunLikeStorm(ctx context.Context, numClients, togglesPerClient int) (*LatencyStats, error) {
	var mu sync.Mutex
	var all []time.Duration
	var errorCount, conflictCount int

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < numClients; i++ {
		client := i
		g.Go(func() error {
			key := ClientKey(client)
			rng := rand.New(rand.NewSource(int64(client) + 1))
			durations := make([]time.Duration, 0, togglesPerClient)
			var errs, conflicts int

			for j := 0; j < togglesPerClient; j++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				postID := b.PostIDs[rng.Intn(len(b.PostIDs))]

				start := time.Now()
				state, err := b.Gateway.ToggleLike(gctx, postID, key)
				durations = append(durations, time.Since(start))

				if errors.Is(err, db.ErrConflict) {
					conflicts++
					continue
				}
				if err != nil {
					errs++
					continue
				}

				liked := false
				for _, k := range state.LikedBy {
					if k == key {
						liked = true
						break
					}
				}
				b.mu.Lock()
				b.belief[postID][key] = liked
				b.mu.Unlock()
			}

			mu.Lock()
			all = append(all, durations...)
			errorCount += errs
			conflictCount += conflicts
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, fmt.Errorf("no toggles completed")
	}

	stats := computeLatencyStats(all)
	stats.Errors = errorCount
	stats.Conflicts = conflictCount
	return stats, nil
}

// Mismatch is a post whose stored likes disagree with what clients saw.
type Mismatch struct {
	PostID  string
	Stored  []string
	Believe []string
}

// VerifyConsistency compares every seeded post's liked_by with the clients'
// beliefs. It also checks that liked_by holds no duplicate keys.
func (b *Bench) VerifyConsistency(ctx context.Context) ([]Mismatch, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []Mismatch
	for _, id := range b.PostIDs {
		row, err := b.DB.GetPost(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to read post %s: %w", id, err)
		}

		believe := []string{}
		for key, liked := range b.belief[id] {
			if liked {
				believe = append(believe, key)
			}
		}
		sort.Strings(believe)

		stored := append([]string(nil), row.LikedBy...)
		sort.Strings(stored)

		if !equalKeys(stored, believe) {
			out = append(out, Mismatch{PostID: id, Stored: stored, Believe: believe})
		}
	}
	return out, nil
}

func equalKeys(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// computeLatencyStats calculates statistics from a slice of durations.
func computeLatencyStats(durations []time.Duration) *LatencyStats {
	if len(durations) == 0 {
		return &LatencyStats{}
	}

	sorted := make([]time.Duration, len(durations))
	copy(sorted, durations)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i] < sorted[j]
	})

	var sum time.Duration
	for _, d := range durations {
		sum += d
	}
	mean := sum / time.Duration(len(durations))

	return &LatencyStats{
		Min:          sorted[0],
		Max:          sorted[len(sorted)-1],
		Mean:         mean,
		P50:          sorted[len(sorted)*50/100],
		P95:          sorted[len(sorted)*95/100],
		P99:          sorted[len(sorted)*99/100],
		TotalQueries: len(durations),
		Durations:    sorted,
	}
}

// PrintStats formats latency statistics onto w.
func (s *LatencyStats) PrintStats(w io.Writer) {
	fmt.Fprintf(w, "Latency Statistics:\n")
	fmt.Fprintf(w, "  Total Toggles: %d\n", s.TotalQueries)
	fmt.Fprintf(w, "  Errors:        %d\n", s.Errors)
	fmt.Fprintf(w, "  Conflicts:     %d\n", s.Conflicts)
	fmt.Fprintf(w, "  Min:           %v\n", s.Min)
	fmt.Fprintf(w, "  P50 (Median):  %v\n", s.P50)
	fmt.Fprintf(w, "  Mean:          %v\n", s.Mean)
	fmt.Fprintf(w, "  P95:           %v\n", s.P95)
	fmt.Fprintf(w, "  P99:           %v\n", s.P99)
	fmt.Fprintf(w, "  Max:           %v\n", s.Max)
}
