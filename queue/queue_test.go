package queue_test

import (
	"math/rand"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/framekeeper/reqsched/queue"
)

type item struct {
	name     string
	priority int
}

func higher(a, b *item) bool { return a.priority > b.priority }

func drain(q *queue.Queue[*item]) []string {
	var names []string
	for {
		it, ok := q.PopMax()
		if !ok {
			return names
		}

		names = append(names, it.name)
	}
}

func TestInsertBelowCapacity(t *testing.T) {
	q := queue.New(3, higher)
	for _, it := range []*item{{"a", 1}, {"b", 3}, {"c", 2}} {
		dropped, ok := q.Insert(it)
		require.True(t, ok)
		require.Empty(t, dropped)
	}

	assert.Equal(t, 3, q.Len())
	assert.Equal(t, []string{"b", "c", "a"}, drain(q))
}

func TestInsertOverflow(t *testing.T) {
	for _, tt := range []struct {
		name        string
		capacity    int
		queued      []*item
		insert      *item
		wantOK      bool
		wantDropped []string
		wantOrder   []string
	}{{
		name:      "zero capacity never admits",
		capacity:  0,
		insert:    &item{"x", 100},
		wantOK:    false,
		wantOrder: nil,
	}, {
		name:      "lower priority is refused",
		capacity:  1,
		queued:    []*item{{"a", 1}},
		insert:    &item{"x", 0},
		wantOK:    false,
		wantOrder: []string{"a"},
	}, {
		name:      "equal priority is refused",
		capacity:  1,
		queued:    []*item{{"a", 1}},
		insert:    &item{"x", 1},
		wantOK:    false,
		wantOrder: []string{"a"},
	}, {
		name:        "higher priority evicts the only item",
		capacity:    1,
		queued:      []*item{{"a", 1}},
		insert:      &item{"x", 5},
		wantOK:      true,
		wantDropped: []string{"a"},
		wantOrder:   []string{"x"},
	}, {
		name:        "evicts the lowest, not the last inserted",
		capacity:    4,
		queued:      []*item{{"a", 7}, {"b", 1}, {"c", 9}, {"d", 5}},
		insert:      &item{"x", 3},
		wantOK:      true,
		wantDropped: []string{"b"},
		wantOrder:   []string{"c", "a", "d", "x"},
	}, {
		name:      "must outrank the lowest",
		capacity:  3,
		queued:    []*item{{"a", 7}, {"b", 4}, {"c", 9}},
		insert:    &item{"x", 2},
		wantOK:    false,
		wantOrder: []string{"c", "a", "b"},
	}} {
		t.Run(tt.name, func(t *testing.T) {
			q := queue.New(tt.capacity, higher)
			for _, it := range tt.queued {
				_, ok := q.Insert(it)
				require.True(t, ok)
			}

			dropped, ok := q.Insert(tt.insert)
			assert.Equal(t, tt.wantOK, ok)

			var droppedNames []string
			for _, d := range dropped {
				droppedNames = append(droppedNames, d.name)
			}

			assert.Equal(t, tt.wantDropped, droppedNames)
			assert.Equal(t, tt.wantOrder, drain(q))
		})
	}
}

func TestPopEmpty(t *testing.T) {
	q := queue.New(2, higher)
	it, ok := q.PopMax()
	assert.False(t, ok)
	assert.Nil(t, it)

	it, ok = q.Peek()
	assert.False(t, ok)
	assert.Nil(t, it)
}

func TestPeek(t *testing.T) {
	q := queue.New(2, higher)
	q.Insert(&item{"a", 1})
	q.Insert(&item{"b", 2})

	it, ok := q.Peek()
	require.True(t, ok)
	assert.Equal(t, "b", it.name)
	assert.Equal(t, 2, q.Len())
}

func TestRebuildAfterMutation(t *testing.T) {
	a, b, c := &item{"a", 3}, &item{"b", 2}, &item{"c", 1}
	q := queue.New(3, higher)
	q.Insert(a)
	q.Insert(b)
	q.Insert(c)

	a.priority, c.priority = 1, 3
	q.Rebuild()

	assert.Equal(t, []string{"c", "b", "a"}, drain(q))
}

func TestRebuildKeepsEvictionCorrect(t *testing.T) {
	a, b := &item{"a", 5}, &item{"b", 4}
	q := queue.New(2, higher)
	q.Insert(a)
	q.Insert(b)

	b.priority = 10
	q.Rebuild()

	dropped, ok := q.Insert(&item{"x", 6})
	require.True(t, ok)
	require.Len(t, dropped, 1)
	assert.Equal(t, "a", dropped[0].name)
}

func TestEvictionWithoutRebuild(t *testing.T) {
	t.Run("evicts the item demoted since the last rebuild", func(t *testing.T) {
		a, b, c := &item{"a", 5}, &item{"b", 4}, &item{"c", 3}
		q := queue.New(3, higher)
		q.Insert(a)
		q.Insert(b)
		q.Insert(c)

		a.priority = 0
		dropped, ok := q.Insert(&item{"d", 6})
		require.True(t, ok)
		require.Len(t, dropped, 1)
		assert.Equal(t, "a", dropped[0].name)

		q.Rebuild()
		assert.Equal(t, []string{"d", "b", "c"}, drain(q))
	})

	t.Run("admits an item outranking a root demoted below the leaves", func(t *testing.T) {
		a, b, c := &item{"a", 5}, &item{"b", 4}, &item{"c", 3}
		q := queue.New(3, higher)
		q.Insert(a)
		q.Insert(b)
		q.Insert(c)

		b.priority, c.priority = 8, 9
		dropped, ok := q.Insert(&item{"d", 6})
		require.True(t, ok)
		require.Len(t, dropped, 1)
		assert.Equal(t, "a", dropped[0].name)

		q.Rebuild()
		assert.Equal(t, []string{"c", "b", "d"}, drain(q))
	})
}

func TestResize(t *testing.T) {
	t.Run("shrink evicts lowest first", func(t *testing.T) {
		q := queue.New(5, higher)
		for _, it := range []*item{{"a", 4}, {"b", 2}, {"c", 5}, {"d", 1}, {"e", 3}} {
			q.Insert(it)
		}

		dropped := q.Resize(2)
		var names []string
		for _, d := range dropped {
			names = append(names, d.name)
		}

		assert.Equal(t, []string{"d", "b", "e"}, names)
		assert.Equal(t, 2, q.Capacity())
		assert.Equal(t, []string{"c", "a"}, drain(q))
	})

	t.Run("grow keeps items", func(t *testing.T) {
		q := queue.New(1, higher)
		q.Insert(&item{"a", 1})
		assert.Empty(t, q.Resize(3))

		_, ok := q.Insert(&item{"b", 0})
		assert.True(t, ok)
		assert.Equal(t, 2, q.Len())
	})

	t.Run("negative capacity", func(t *testing.T) {
		q := queue.New(2, higher)
		q.Insert(&item{"a", 1})
		dropped := q.Resize(-1)
		assert.Len(t, dropped, 1)
		assert.Equal(t, 0, q.Capacity())
		assert.Equal(t, 0, q.Len())
	})
}

func TestRange(t *testing.T) {
	q := queue.New(3, higher)
	q.Insert(&item{"a", 1})
	q.Insert(&item{"b", 2})
	q.Insert(&item{"c", 3})

	var names []string
	q.Range(func(it *item) bool {
		names = append(names, it.name)
		return true
	})

	slices.Sort(names)
	assert.Equal(t, []string{"a", "b", "c"}, names)

	var count int
	q.Range(func(*item) bool {
		count++
		return false
	})

	assert.Equal(t, 1, count)
}

func TestRandomOrder(t *testing.T) {
	const n = 200
	r := rand.New(rand.NewSource(42))
	q := queue.New(n/2, higher)

	var all []int
	for i := 0; i < n; i++ {
		p := r.Intn(1000)
		all = append(all, p)
		q.Insert(&item{priority: p})
	}

	slices.Sort(all)
	slices.Reverse(all)
	want := all[:n/2]

	var got []int
	for {
		it, ok := q.PopMax()
		if !ok {
			break
		}

		got = append(got, it.priority)
	}

	assert.Equal(t, want, got)
}
