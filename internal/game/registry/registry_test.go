package registry

import (
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestUpsert_CreatesWithDefaults(t *testing.T) {
	r := NewRegistry()
	id := uuid.New()

	rec := r.Upsert(id, "Asha")
	assert.Equal(t, id, rec.ID)
	assert.Equal(t, "Asha", rec.Username)
	assert.Equal(t, 1, rec.PvPLevel)
	assert.Empty(t, rec.Properties)
	assert.Equal(t, 1, r.Count())
}

func TestUpsert_DerivesUsername(t *testing.T) {
	r := NewRegistry()
	id := uuid.New()

	rec := r.Upsert(id, "")
	assert.Equal(t, fmt.Sprintf("User-%s", id.String()[:8]), rec.Username)
}

func TestUpsert_Idempotent(t *testing.T) {
	r := NewRegistry()
	id := uuid.New()

	first := r.Upsert(id, "Asha")
	second := r.Upsert(id, "Binta")

	assert.Equal(t, first.Username, second.Username, "existing record must be returned unchanged")
	assert.Equal(t, 1, r.Count())
}

func TestUpsert_ConcurrentSameIdentity(t *testing.T) {
	r := NewRegistry()
	id := uuid.New()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Upsert(id, "Asha")
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, r.Count())
}

func TestAttachOutbound_CreatesRecordIfAbsent(t *testing.T) {
	r := NewRegistry()
	id := uuid.New()
	out := NewOutbound(id.String(), 4)

	r.AttachOutbound(id, out)

	got, ok := r.Outbound(id)
	require.True(t, ok)
	assert.Same(t, out, got)

	rec, ok := r.Get(id)
	require.True(t, ok)
	assert.Equal(t, 1, rec.PvPLevel)
}

func TestOutbound_AbsentWhenNotAttached(t *testing.T) {
	r := NewRegistry()
	id := uuid.New()
	r.Upsert(id, "Asha")

	_, ok := r.Outbound(id)
	assert.False(t, ok)
}

func TestRemove_ClosesOutboundAndDeletes(t *testing.T) {
	r := NewRegistry()
	id := uuid.New()
	out := NewOutbound(id.String(), 4)
	r.Upsert(id, "Asha")
	r.AttachOutbound(id, out)

	r.Remove(id)

	assert.Equal(t, 0, r.Count())
	assert.True(t, out.IsClosed())
	_, ok := r.Get(id)
	assert.False(t, ok)
}

func TestRemove_AbsentIsNoOp(t *testing.T) {
	r := NewRegistry()
	r.Remove(uuid.New())
	assert.Equal(t, 0, r.Count())
}

func TestGet_SnapshotDoesNotAliasLiveState(t *testing.T) {
	r := NewRegistry()
	id := uuid.New()
	r.Upsert(id, "Asha")
	r.Mutate(id, func(s *State) {
		s.Properties = append(s.Properties, Property{Name: "Land Item", Reward: 3})
	})

	snap, ok := r.Get(id)
	require.True(t, ok)
	snap.Properties[0].Reward = 999

	again, ok := r.Get(id)
	require.True(t, ok)
	assert.Equal(t, 3, again.Properties[0].Reward)
}

func TestListOthers_ExcludesCaller(t *testing.T) {
	r := NewRegistry()
	caller := uuid.New()
	other := uuid.New()
	r.Upsert(caller, "Asha")
	r.Upsert(other, "Binta")

	got := r.ListOthers(caller)
	require.Len(t, got, 1)
	assert.Equal(t, other, got[0].ID)
	assert.Equal(t, "Binta", got[0].Username)
	assert.Equal(t, 1, got[0].PvPLevel)
}

func TestListOthers_EmptyRegistry(t *testing.T) {
	r := NewRegistry()
	assert.Empty(t, r.ListOthers(uuid.New()))
}

func TestMutate_AbsentReturnsFalse(t *testing.T) {
	r := NewRegistry()
	ran := false
	ok := r.Mutate(uuid.New(), func(*State) { ran = true })
	assert.False(t, ok)
	assert.False(t, ran)
}

// Concurrent appends against the same record must never lose an update.
func TestMutate_ConcurrentAppendsSameRecord(t *testing.T) {
	r := NewRegistry()
	id := uuid.New()
	r.Upsert(id, "Asha")

	const workers = 16
	const appendsPerWorker = 50

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < appendsPerWorker; i++ {
				r.Mutate(id, func(s *State) {
					s.Properties = append(s.Properties, Property{Name: "Land Item", Reward: 3})
				})
			}
		}()
	}
	wg.Wait()

	rec, ok := r.Get(id)
	require.True(t, ok)
	assert.Len(t, rec.Properties, workers*appendsPerWorker)
}

func TestMutate_DisjointRecordsConcurrently(t *testing.T) {
	r := NewRegistry()
	ids := make([]uuid.UUID, 8)
	for i := range ids {
		ids[i] = uuid.New()
		r.Upsert(ids[i], "")
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		id := id
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				r.Mutate(id, func(s *State) {
					s.Properties = append(s.Properties, Property{Name: "Weapons Item", Reward: 1})
				})
			}
		}()
	}
	wg.Wait()

	for _, id := range ids {
		rec, ok := r.Get(id)
		require.True(t, ok)
		assert.Len(t, rec.Properties, 100)
	}
}

func TestPropertyAppendCountMatchesCalls(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		r := NewRegistry()
		id := uuid.New()
		r.Upsert(id, "")

		calls := rapid.IntRange(0, 200).Draw(rt, "calls")
		var wg sync.WaitGroup
		for i := 0; i < calls; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				r.Mutate(id, func(s *State) {
					s.Properties = append(s.Properties, Property{Name: "Islands Item", Reward: 10})
				})
			}()
		}
		wg.Wait()

		rec, ok := r.Get(id)
		if !ok {
			rt.Fatalf("record for %s vanished", id)
		}
		if len(rec.Properties) != calls {
			rt.Fatalf("expected %d properties, got %d", calls, len(rec.Properties))
		}
	})
}
