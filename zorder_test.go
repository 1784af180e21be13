// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

package rewrite

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T, mutate ...func(*ZOrderConfig)) *Manager {
	t.Helper()
	cfg := NewDefaultZOrderConfig()
	for _, f := range mutate {
		f(&cfg)
	}
	m, err := NewManager(cfg)
	require.NoError(t, err)
	return m
}

func TestManager_AddAssignsSteppedZ(t *testing.T) {
	m := newTestManager(t)
	r := Rect{URX: 10, URY: 10}

	a, err := m.Add(1, r, LevelOverlay)
	require.NoError(t, err)
	b, err := m.Add(1, r, LevelOverlay)
	require.NoError(t, err)
	c, err := m.Add(1, r, LevelRedaction)
	require.NoError(t, err)

	assert.Equal(t, 900, a.Z)
	assert.Equal(t, 910, b.Z)
	assert.Equal(t, 100, c.Z, "each level keeps its own counter")

	// A different page starts fresh.
	d, err := m.Add(2, r, LevelOverlay)
	require.NoError(t, err)
	assert.Equal(t, 900, d.Z)
}

func TestManager_LevelBoundaryClamp(t *testing.T) {
	m := newTestManager(t)
	r := Rect{URX: 5, URY: 5}
	var last LayerInfo
	for i := 0; i < 12; i++ {
		var err error
		last, err = m.Add(1, r, LevelOverlay)
		require.NoError(t, err)
	}
	// Overlay band ends below the UI base at 1000.
	assert.Equal(t, 999, last.Z)
}

func TestManager_Capacity(t *testing.T) {
	m := newTestManager(t, func(c *ZOrderConfig) { c.MaxLayersPerPage = 2 })
	r := Rect{URX: 5, URY: 5}
	_, err := m.Add(1, r, LevelOverlay)
	require.NoError(t, err)
	_, err = m.Add(1, r, LevelOverlay)
	require.NoError(t, err)
	_, err = m.Add(1, r, LevelOverlay)
	assert.ErrorIs(t, err, ErrTooManyLayers)

	// Other pages are unaffected.
	_, err = m.Add(2, r, LevelOverlay)
	assert.NoError(t, err)
}

func TestManager_RemoveAndLookup(t *testing.T) {
	m := newTestManager(t)
	a, err := m.Add(1, Rect{URX: 5, URY: 5}, LevelContentBase)
	require.NoError(t, err)

	got, err := m.Layer(a.ID)
	require.NoError(t, err)
	assert.Equal(t, a, got)

	require.NoError(t, m.Remove(a.ID))
	_, err = m.Layer(a.ID)
	assert.ErrorIs(t, err, ErrLayerNotFound)
	assert.ErrorIs(t, m.Remove(a.ID), ErrLayerNotFound)
}

func TestManager_MoveRelative(t *testing.T) {
	m := newTestManager(t)
	r := Rect{URX: 5, URY: 5}
	a, _ := m.Add(1, r, LevelOverlay)
	b, _ := m.Add(1, r, LevelOverlay)

	require.NoError(t, m.MoveAbove(a.ID, b.ID))
	got, _ := m.Layer(a.ID)
	assert.Equal(t, b.Z+1, got.Z)

	require.NoError(t, m.MoveBelow(a.ID, b.ID))
	got, _ = m.Layer(a.ID)
	assert.Equal(t, b.Z-1, got.Z)
}

func TestManager_CrossLevelMovement(t *testing.T) {
	r := Rect{URX: 5, URY: 5}

	t.Run("disabled by default", func(t *testing.T) {
		m := newTestManager(t)
		a, _ := m.Add(1, r, LevelOverlay)
		b, _ := m.Add(1, r, LevelAnnotation)
		assert.ErrorIs(t, m.MoveAbove(a.ID, b.ID), ErrCrossLevel)
	})

	t.Run("follows the reference when allowed", func(t *testing.T) {
		m := newTestManager(t, func(c *ZOrderConfig) { c.AllowCrossLevelMovement = true })
		a, _ := m.Add(1, r, LevelOverlay)
		b, _ := m.Add(1, r, LevelAnnotation)
		require.NoError(t, m.MoveAbove(a.ID, b.ID))
		got, _ := m.Layer(a.ID)
		assert.Equal(t, LevelAnnotation, got.Level)
		assert.Equal(t, b.Z+1, got.Z)
	})
}

func TestManager_FrontAndBack(t *testing.T) {
	m := newTestManager(t)
	r := Rect{URX: 5, URY: 5}
	a, _ := m.Add(1, r, LevelOverlay)
	b, _ := m.Add(1, r, LevelOverlay)
	c, _ := m.Add(1, r, LevelOverlay)

	require.NoError(t, m.BringToFront(a.ID))
	got, _ := m.Layer(a.ID)
	assert.Greater(t, got.Z, c.Z)

	require.NoError(t, m.SendToBack(c.ID))
	got, _ = m.Layer(c.ID)
	assert.Less(t, got.Z, b.Z)
	assert.GreaterOrEqual(t, got.Z, int(LevelOverlay), "never below the band base")
}

func TestLayerLevel_Ladder(t *testing.T) {
	// Redaction sits below the content bands so a redaction fill can
	// never cover replacement text.
	assert.Less(t, int(LevelRedaction), int(LevelContentBase))
	assert.Less(t, int(LevelContentBase), int(LevelText))
	for i := 1; i < len(levelOrder); i++ {
		assert.Less(t, int(levelOrder[i-1]), int(levelOrder[i]))
	}
	assert.Len(t, levelOrder, 14)
}

func TestManager_AlternatingFrontKeepsClimbing(t *testing.T) {
	m := newTestManager(t)
	r := Rect{URX: 5, URY: 5}
	a, _ := m.Add(1, r, LevelOverlay)
	b, _ := m.Add(1, r, LevelOverlay)

	prevA, prevB := a.Z, b.Z
	for i := 0; i < 10; i++ {
		require.NoError(t, m.BringToFront(a.ID))
		ga, _ := m.Layer(a.ID)
		require.Greater(t, ga.Z, prevA, "raise %d must increase z", i)
		prevA = ga.Z

		require.NoError(t, m.BringToFront(b.ID))
		gb, _ := m.Layer(b.ID)
		require.Greater(t, gb.Z, prevB, "raise %d must increase z", i)
		prevB = gb.Z
	}
}

func TestManager_ForwardBackwardSwapsNeighbors(t *testing.T) {
	m := newTestManager(t)
	r := Rect{URX: 5, URY: 5}
	a, _ := m.Add(1, r, LevelOverlay) // 900
	b, _ := m.Add(1, r, LevelOverlay) // 910
	c, _ := m.Add(1, r, LevelOverlay) // 920

	require.NoError(t, m.BringForward(a.ID))
	ga, _ := m.Layer(a.ID)
	gb, _ := m.Layer(b.ID)
	assert.Equal(t, b.Z, ga.Z, "takes the neighbor's slot")
	assert.Equal(t, a.Z, gb.Z, "neighbor drops into the vacated slot")

	// c is on top of its band; forward is a no-op.
	require.NoError(t, m.BringForward(c.ID))
	gc, _ := m.Layer(c.ID)
	assert.Equal(t, c.Z, gc.Z)

	require.NoError(t, m.SendBackward(c.ID))
	gc, _ = m.Layer(c.ID)
	ga, _ = m.Layer(a.ID)
	assert.Equal(t, b.Z, gc.Z, "swapped with the highest lower sibling")
	assert.Equal(t, c.Z, ga.Z)
}

func TestManager_MoveToLevel(t *testing.T) {
	r := Rect{URX: 5, URY: 5}

	t.Run("requires cross-level permission", func(t *testing.T) {
		m := newTestManager(t)
		a, _ := m.Add(1, r, LevelOverlay)
		assert.ErrorIs(t, m.MoveToLevel(a.ID, LevelAnnotation), ErrCrossLevel)
	})

	t.Run("takes the next slot in the new band", func(t *testing.T) {
		m := newTestManager(t, func(c *ZOrderConfig) { c.AllowCrossLevelMovement = true })
		m.Add(1, r, LevelAnnotation)
		a, _ := m.Add(1, r, LevelOverlay)
		require.NoError(t, m.MoveToLevel(a.ID, LevelAnnotation))
		got, _ := m.Layer(a.ID)
		assert.Equal(t, LevelAnnotation, got.Level)
		assert.Equal(t, 610, got.Z)
	})
}

func TestManager_SwapLayers(t *testing.T) {
	m := newTestManager(t)
	r := Rect{URX: 5, URY: 5}
	a, _ := m.Add(1, r, LevelOverlay)
	b, _ := m.Add(1, r, LevelRedaction)
	other, _ := m.Add(2, r, LevelOverlay)

	assert.ErrorIs(t, m.SwapLayers(a.ID, other.ID), ErrPageMismatch)

	require.NoError(t, m.SwapLayers(a.ID, b.ID))
	ga, _ := m.Layer(a.ID)
	gb, _ := m.Layer(b.ID)
	assert.Equal(t, b.Z, ga.Z)
	assert.Equal(t, a.Z, gb.Z)

	require.NoError(t, m.Undo())
	ga, _ = m.Layer(a.ID)
	assert.Equal(t, a.Z, ga.Z)
}

func TestManager_LockedLayerRefusesReorder(t *testing.T) {
	m := newTestManager(t)
	r := Rect{URX: 5, URY: 5}
	a, _ := m.Add(1, r, LevelOverlay)
	b, _ := m.Add(1, r, LevelOverlay)

	require.NoError(t, m.SetLocked(a.ID, true))
	assert.ErrorIs(t, m.BringToFront(a.ID), ErrLayerLocked)
	assert.ErrorIs(t, m.SendToBack(a.ID), ErrLayerLocked)
	assert.ErrorIs(t, m.BringForward(a.ID), ErrLayerLocked)
	assert.ErrorIs(t, m.SendBackward(a.ID), ErrLayerLocked)
	assert.ErrorIs(t, m.MoveAbove(a.ID, b.ID), ErrLayerLocked)
	assert.ErrorIs(t, m.SwapLayers(a.ID, b.ID), ErrLayerLocked)
	assert.ErrorIs(t, m.SendBackward(b.ID), ErrLayerLocked,
		"swapping past a locked neighbor is also refused")

	require.NoError(t, m.SetLocked(a.ID, false))
	assert.NoError(t, m.BringToFront(a.ID))
}

func TestManager_VisibilityAndTimestamps(t *testing.T) {
	m := newTestManager(t)
	a, _ := m.Add(1, Rect{URX: 5, URY: 5}, LevelOverlay)
	assert.True(t, a.Visible)
	assert.False(t, a.Created.IsZero())
	assert.Equal(t, a.Created, a.Updated)

	require.NoError(t, m.SetVisible(a.ID, false))
	got, _ := m.Layer(a.ID)
	assert.False(t, got.Visible)

	require.NoError(t, m.BringToFront(a.ID))
	got, _ = m.Layer(a.ID)
	assert.False(t, got.Updated.Before(a.Created))
}

func TestManager_UndoAddReleasesSlot(t *testing.T) {
	m := newTestManager(t)
	r := Rect{URX: 5, URY: 5}
	a, _ := m.Add(1, r, LevelOverlay)
	require.NoError(t, m.Undo())

	// The level counter must roll back with the layer, so the next
	// add reuses the same slot instead of drifting upward.
	b, _ := m.Add(1, r, LevelOverlay)
	assert.Equal(t, a.Z, b.Z)
}

func TestManager_LayersAt(t *testing.T) {
	m := newTestManager(t)
	a, _ := m.Add(1, Rect{URX: 10, URY: 10}, LevelContentBase)
	b, _ := m.Add(1, Rect{URX: 10, URY: 10}, LevelOverlay)
	m.Add(1, Rect{LLX: 50, LLY: 50, URX: 60, URY: 60}, LevelOverlay)

	hits := m.LayersAt(1, 5, 5)
	require.Len(t, hits, 2)
	assert.Equal(t, b.ID, hits[0].ID, "topmost first")
	assert.Equal(t, a.ID, hits[1].ID)

	assert.Empty(t, m.LayersAt(1, 200, 200))
}

func TestManager_Collisions(t *testing.T) {
	m := newTestManager(t)
	ident, _ := m.Add(1, Rect{URX: 10, URY: 10}, LevelContentBase)
	contains, _ := m.Add(1, Rect{LLX: -10, LLY: -10, URX: 100, URY: 100}, LevelBackground)
	full, _ := m.Add(1, Rect{LLX: 0, LLY: 4, URX: 10, URY: 14}, LevelOverlay)
	partial, _ := m.Add(1, Rect{LLX: 8, LLY: 8, URX: 18, URY: 18}, LevelOverlay)
	m.Add(1, Rect{LLX: 50, LLY: 50, URX: 60, URY: 60}, LevelOverlay)

	query := Rect{LLX: 0.2, LLY: -0.2, URX: 10.3, URY: 9.8}
	found := map[string]CollisionKind{}
	for _, ci := range m.Collisions(1, query) {
		found[ci.LayerID] = ci.Kind
	}
	assert.Equal(t, CollisionIdentical, found[ident.ID], "within the 0.5 tolerance")
	assert.Equal(t, CollisionContains, found[contains.ID])
	assert.Equal(t, CollisionFull, found[full.ID])
	assert.Equal(t, CollisionPartial, found[partial.ID])
	assert.Len(t, found, 4, "disjoint layer must not appear")
}

func TestManager_Groups(t *testing.T) {
	m := newTestManager(t)
	r := Rect{URX: 5, URY: 5}
	a, _ := m.Add(1, r, LevelOverlay)
	b, _ := m.Add(1, r, LevelOverlay)
	c, _ := m.Add(1, r, LevelOverlay)
	other, _ := m.Add(2, r, LevelOverlay)

	_, err := m.Group(a.ID, other.ID)
	assert.Error(t, err, "groups cannot span pages")
	_, err = m.Group(a.ID)
	assert.Error(t, err, "a group needs two members")

	gid, err := m.Group(a.ID, b.ID)
	require.NoError(t, err)

	// The whole group moves above c, keeping a below b.
	require.NoError(t, m.BringGroupToFront(gid))
	ga, _ := m.Layer(a.ID)
	gb, _ := m.Layer(b.ID)
	gc, _ := m.Layer(c.ID)
	assert.Greater(t, ga.Z, gc.Z)
	assert.Greater(t, gb.Z, ga.Z, "relative order preserved")

	require.NoError(t, m.Ungroup(gid))
	assert.ErrorIs(t, m.Ungroup(gid), ErrGroupNotFound)
	ga, _ = m.Layer(a.ID)
	assert.Empty(t, ga.Group)
}

func TestManager_UndoRedo(t *testing.T) {
	m := newTestManager(t)
	r := Rect{URX: 5, URY: 5}

	assert.ErrorIs(t, m.Undo(), ErrHistoryEmpty)
	assert.ErrorIs(t, m.Redo(), ErrRedoEmpty)

	a, _ := m.Add(1, r, LevelOverlay)
	require.NoError(t, m.Undo())
	_, err := m.Layer(a.ID)
	assert.ErrorIs(t, err, ErrLayerNotFound)

	require.NoError(t, m.Redo())
	got, err := m.Layer(a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.Z, got.Z)

	// Undo a move restores the old position.
	require.NoError(t, m.BringToFront(a.ID))
	moved, _ := m.Layer(a.ID)
	require.NotEqual(t, a.Z, moved.Z)
	require.NoError(t, m.Undo())
	got, _ = m.Layer(a.ID)
	assert.Equal(t, a.Z, got.Z)
}

func TestManager_HistoryTruncatesOnNewAction(t *testing.T) {
	m := newTestManager(t)
	r := Rect{URX: 5, URY: 5}
	m.Add(1, r, LevelOverlay)
	b, _ := m.Add(1, r, LevelOverlay)

	require.NoError(t, m.Undo())
	_, err := m.Layer(b.ID)
	require.ErrorIs(t, err, ErrLayerNotFound)

	// A fresh action wipes the redo tail.
	m.Add(1, r, LevelOverlay)
	assert.ErrorIs(t, m.Redo(), ErrRedoEmpty)
}

func TestManager_HistoryCapacity(t *testing.T) {
	m := newTestManager(t, func(c *ZOrderConfig) { c.MaxHistory = 2 })
	r := Rect{URX: 5, URY: 5}
	m.Add(1, r, LevelOverlay)
	m.Add(1, r, LevelOverlay)
	m.Add(1, r, LevelOverlay)

	assert.Equal(t, 2, m.HistoryLen(), "oldest entry dropped")
	require.NoError(t, m.Undo())
	require.NoError(t, m.Undo())
	assert.ErrorIs(t, m.Undo(), ErrHistoryEmpty)
}

func TestManager_Stats(t *testing.T) {
	m := newTestManager(t)
	r := Rect{URX: 5, URY: 5}
	a, _ := m.Add(1, r, LevelOverlay)
	b, _ := m.Add(1, r, LevelOverlay)
	m.Add(1, r, LevelRedaction)
	m.Group(a.ID, b.ID)

	st := m.Stats(1)
	assert.Equal(t, 3, st.Layers)
	assert.Equal(t, 2, st.PerLevel[LevelOverlay])
	assert.Equal(t, 1, st.PerLevel[LevelRedaction])
	assert.Equal(t, 1, st.Groups)
	assert.Equal(t, 910, st.TopZ)
}
