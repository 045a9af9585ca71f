package timeline

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivlev/screenzoom/internal/easing"
	zerr "github.com/ivlev/screenzoom/internal/errors"
)

func TestAddGrowsDurationAndAssignsID(t *testing.T) {
	tl := New(5)
	next, err := tl.Apply(Add[Transform]{Keyframe: Keyframe[Transform]{
		Time:   7,
		Value:  NeutralTransform,
		Easing: easing.Linear(),
	}})
	require.NoError(t, err)

	assert.Equal(t, 7.0, next.Duration)
	require.Equal(t, 1, next.Transform.Len())
	assert.NotEmpty(t, next.Transform.Keyframes[0].ID)
	assert.Equal(t, 0, tl.Transform.Len(), "original timeline must not change")
}

func TestAddRejectsInvalidKeyframes(t *testing.T) {
	tests := []struct {
		name string
		kf   Keyframe[Transform]
	}{
		{"nan time", Keyframe[Transform]{Time: math.NaN(), Value: NeutralTransform, Easing: easing.Linear()}},
		{"inf time", Keyframe[Transform]{Time: math.Inf(1), Value: NeutralTransform, Easing: easing.Linear()}},
		{"negative time", Keyframe[Transform]{Time: -1, Value: NeutralTransform, Easing: easing.Linear()}},
		{"zero zoom", Keyframe[Transform]{Time: 1, Value: Transform{Zoom: 0, Center: Center}, Easing: easing.Linear()}},
		{"unknown easing", Keyframe[Transform]{Time: 1, Value: NeutralTransform, Easing: easing.Curve{Kind: "wobble"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tl := New(5)
			next, err := tl.Apply(Add[Transform]{Keyframe: tt.kf})
			require.Error(t, err)
			assert.True(t, zerr.Is(err, zerr.ErrInvalidEdit), "got %v", err)
			assert.Equal(t, tl, next)
		})
	}
}

func TestRemoveAbsentIsNoChange(t *testing.T) {
	tl := New(5)
	_, changed, err := Remove[Ripple]{ID: "missing"}.apply(tl)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestMove(t *testing.T) {
	base := New(10)
	base, err := base.Apply(ReplaceTrack[Transform]{Keyframes: []Keyframe[Transform]{
		transformKF("a", 1, 1),
		transformKF("b", 2, 2),
		transformKF("c", 3, 3),
	}})
	require.NoError(t, err)

	t.Run("reorders", func(t *testing.T) {
		next, err := base.Apply(Move[Transform]{ID: "a", Time: 2.5})
		require.NoError(t, err)
		assert.Equal(t, []string{"b", "a", "c"}, ids(next.Transform))
	})

	t.Run("clamps", func(t *testing.T) {
		next, err := base.Apply(Move[Transform]{ID: "b", Time: 42})
		require.NoError(t, err)
		kf, ok := next.Transform.Get("b")
		require.True(t, ok)
		assert.Equal(t, 10.0, kf.Time)

		next, err = base.Apply(Move[Transform]{ID: "b", Time: -4})
		require.NoError(t, err)
		kf, _ = next.Transform.Get("b")
		assert.Equal(t, 0.0, kf.Time)
	})

	t.Run("snaps", func(t *testing.T) {
		next, err := base.Apply(Move[Transform]{ID: "a", Time: 1.2345, Snap: true})
		require.NoError(t, err)
		kf, _ := next.Transform.Get("a")
		assert.InDelta(t, 1.23, kf.Time, 1e-12)
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := base.Apply(Move[Transform]{ID: "zzz", Time: 1})
		assert.True(t, zerr.Is(err, zerr.ErrNotFound), "got %v", err)
	})

	t.Run("nan", func(t *testing.T) {
		_, err := base.Apply(Move[Transform]{ID: "a", Time: math.NaN()})
		assert.True(t, zerr.Is(err, zerr.ErrInvalidEdit), "got %v", err)
	})
}

func TestUpdateKeepsTime(t *testing.T) {
	tl := New(10)
	tl, err := tl.Apply(Add[Transform]{Keyframe: transformKF("a", 4, 1)})
	require.NoError(t, err)

	repl := transformKF("a", 9, 3)
	repl.Easing = easing.EaseInOut()
	next, err := tl.Apply(Update[Transform]{Keyframe: repl})
	require.NoError(t, err)

	kf, ok := next.Transform.Get("a")
	require.True(t, ok)
	assert.Equal(t, 4.0, kf.Time)
	assert.Equal(t, 3.0, kf.Value.Zoom)
	assert.Equal(t, easing.KindEaseInOut, kf.Easing.Kind)
}

func TestReplaceTrackSortsStably(t *testing.T) {
	tl := New(1)
	next, err := tl.Apply(ReplaceTrack[Transform]{Keyframes: []Keyframe[Transform]{
		transformKF("c", 3, 1),
		transformKF("a", 1, 1),
		transformKF("b", 1, 2),
	}})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, ids(next.Transform))
	assert.Equal(t, 3.0, next.Duration)
}

func TestReplaceTrackSharesOtherTracks(t *testing.T) {
	tl := New(10)
	tl, err := tl.Apply(Add[Ripple]{Keyframe: Keyframe[Ripple]{ID: "r", Time: 1, Value: NeutralRipple, Easing: easing.Linear()}})
	require.NoError(t, err)

	next, err := tl.Apply(ReplaceTrack[Transform]{Keyframes: []Keyframe[Transform]{transformKF("a", 1, 2)}})
	require.NoError(t, err)
	assert.Same(t, &tl.Ripple.Keyframes[0], &next.Ripple.Keyframes[0])
}

func TestSetTrim(t *testing.T) {
	tl := New(10)
	end := 6.0
	next, err := tl.Apply(SetTrim{Start: 2, End: &end})
	require.NoError(t, err)
	assert.Equal(t, 4.0, next.TrimmedDuration())

	bad := 1.0
	_, err = tl.Apply(SetTrim{Start: 2, End: &bad})
	assert.True(t, zerr.Is(err, zerr.ErrInvalidEdit))
}

func TestBatchIsAllOrNothing(t *testing.T) {
	tl := New(5)
	ok := Batch{Edits: []Edit{
		Add[Transform]{Keyframe: transformKF("a", 1, 2)},
		Add[Ripple]{Keyframe: Keyframe[Ripple]{ID: "r", Time: 2, Value: NeutralRipple, Easing: easing.Linear()}},
	}}
	next, err := tl.Apply(ok)
	require.NoError(t, err)
	assert.Equal(t, 1, next.Transform.Len())
	assert.Equal(t, 1, next.Ripple.Len())

	bad := Batch{Edits: []Edit{
		Remove[Transform]{ID: "a"},
		Move[Ripple]{ID: "missing", Time: 1},
	}}
	got, err := next.Apply(bad)
	require.Error(t, err)
	assert.True(t, zerr.Is(err, zerr.ErrNotFound), "got %v", err)
	assert.Equal(t, next, got, "a failed batch changes nothing")
}
