// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

package rewrite

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/sassoftware/viya-pdf-rewrite/logger"
)

// LayerLevel is the semantic stacking band a layer belongs to. Bands
// leave numeric room between them so layers can be inserted without
// renumbering. Redaction sits below content so redaction fills never
// cover replacement text drawn in the content bands.
type LayerLevel int

const (
	LevelBackground     LayerLevel = 0
	LevelRedaction      LayerLevel = 100
	LevelContentBase    LayerLevel = 200
	LevelFill           LayerLevel = 300
	LevelStroke         LayerLevel = 350
	LevelTextBackground LayerLevel = 380
	LevelText           LayerLevel = 400
	LevelTextDecoration LayerLevel = 450
	LevelHighlight      LayerLevel = 500
	LevelAnnotation     LayerLevel = 600
	LevelMarkup         LayerLevel = 700
	LevelForeground     LayerLevel = 800
	LevelOverlay        LayerLevel = 900
	LevelUI             LayerLevel = 1000
)

var levelOrder = []LayerLevel{
	LevelBackground, LevelRedaction, LevelContentBase, LevelFill,
	LevelStroke, LevelTextBackground, LevelText, LevelTextDecoration,
	LevelHighlight, LevelAnnotation, LevelMarkup, LevelForeground,
	LevelOverlay, LevelUI,
}

// nextLevelBase returns the base z of the band above l, or a large
// sentinel for the top band.
func nextLevelBase(l LayerLevel) int {
	for i, lv := range levelOrder {
		if lv == l && i+1 < len(levelOrder) {
			return int(levelOrder[i+1])
		}
	}
	return math.MaxInt32
}

func (l LayerLevel) String() string {
	switch l {
	case LevelBackground:
		return "background"
	case LevelRedaction:
		return "redaction"
	case LevelContentBase:
		return "content-base"
	case LevelFill:
		return "fill"
	case LevelStroke:
		return "stroke"
	case LevelTextBackground:
		return "text-background"
	case LevelText:
		return "text"
	case LevelTextDecoration:
		return "text-decoration"
	case LevelHighlight:
		return "highlight"
	case LevelAnnotation:
		return "annotation"
	case LevelMarkup:
		return "markup"
	case LevelForeground:
		return "foreground"
	case LevelOverlay:
		return "overlay"
	case LevelUI:
		return "ui"
	}
	return fmt.Sprintf("level(%d)", int(l))
}

var (
	ErrLayerNotFound = errors.New("layer not found")
	ErrLayerLocked   = errors.New("layer is locked")
	ErrTooManyLayers = errors.New("layer capacity exceeded")
	ErrHistoryEmpty  = errors.New("nothing to undo")
	ErrRedoEmpty     = errors.New("nothing to redo")
	ErrCrossLevel    = errors.New("cross-level movement disabled")
	ErrGroupNotFound = errors.New("group not found")
	ErrPageMismatch  = errors.New("layers are on different pages")
)

// ZOrderConfig bounds the stacking manager.
type ZOrderConfig struct {
	MaxLayersPerPage int     `validate:"min=1"`
	Step             int     `validate:"min=1"`
	MaxHistory       int     `validate:"min=0"`
	CollisionTol     float64 `validate:"gte=0"`
	// MaintainLevelBoundaries keeps freshly added layers inside their
	// band. Explicit to-front requests still escape upward so repeated
	// raises keep producing strictly larger z values.
	MaintainLevelBoundaries bool
	// AllowCrossLevelMovement lets MoveAbove/MoveBelow/MoveToLevel
	// change a layer's band.
	AllowCrossLevelMovement bool
}

// NewDefaultZOrderConfig returns the standard stacking settings.
func NewDefaultZOrderConfig() ZOrderConfig {
	return ZOrderConfig{
		MaxLayersPerPage:        1000,
		Step:                    10,
		MaxHistory:              100,
		CollisionTol:            0.5,
		MaintainLevelBoundaries: true,
		AllowCrossLevelMovement: false,
	}
}

// Validate checks the config values.
func (c *ZOrderConfig) Validate() error {
	return validator.New().Struct(c)
}

// LayerInfo describes one stacked layer. Z is the absolute stacking
// position; higher draws later. Locked layers refuse every reorder
// until unlocked.
type LayerInfo struct {
	ID      string
	Page    int
	Rect    Rect
	Level   LayerLevel
	Z       int
	Group   string
	Visible bool
	Locked  bool
	Created time.Time
	Updated time.Time
}

// CollisionKind classifies how much two layers overlap.
type CollisionKind string

const (
	CollisionIdentical CollisionKind = "identical"
	CollisionContains  CollisionKind = "contains"
	CollisionFull      CollisionKind = "full"
	CollisionPartial   CollisionKind = "partial"
)

// CollisionInfo is one overlap found by Collisions.
type CollisionInfo struct {
	LayerID  string
	Kind     CollisionKind
	Overlap  Rect
	Fraction float64 // overlap area over the smaller rectangle's area
}

// ZOrderStats summarizes one page's stack.
type ZOrderStats struct {
	Layers   int
	PerLevel map[LayerLevel]int
	Groups   int
	History  int
	TopZ     int
}

type historyAction struct {
	label string
	undo  func(m *Manager)
	redo  func(m *Manager)
}

// Manager tracks stacked layers per page with bounded undo history.
// Safe for concurrent use.
type Manager struct {
	cfg    ZOrderConfig
	mu     sync.Mutex
	nextID int
	layers map[string]*LayerInfo
	pages  map[int]map[string]*LayerInfo
	counts map[int]map[LayerLevel]int // insertion counters per page+level
	groups map[string][]string
	nextGp int

	history []historyAction
	cursor  int // number of applied actions in history

	now func() time.Time
}

// NewManager builds a stacking manager with validated config.
func NewManager(cfg ZOrderConfig) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("zorder config: %w", err)
	}
	return &Manager{
		cfg:    cfg,
		layers: make(map[string]*LayerInfo),
		pages:  make(map[int]map[string]*LayerInfo),
		counts: make(map[int]map[LayerLevel]int),
		groups: make(map[string][]string),
		now:    time.Now,
	}, nil
}

// record pushes an already-performed action onto the history,
// truncating any redo tail and dropping the oldest entry when full.
func (m *Manager) record(a historyAction) {
	if m.cfg.MaxHistory == 0 {
		return
	}
	m.history = append(m.history[:m.cursor], a)
	if len(m.history) > m.cfg.MaxHistory {
		m.history = m.history[1:]
	}
	m.cursor = len(m.history)
}

// Add inserts a layer at the top of its level band and returns it.
func (m *Manager) Add(page int, rect Rect, level LayerLevel) (LayerInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.pages[page]) >= m.cfg.MaxLayersPerPage {
		return LayerInfo{}, fmt.Errorf("page %d: %w", page, ErrTooManyLayers)
	}
	if m.counts[page] == nil {
		m.counts[page] = make(map[LayerLevel]int)
	}
	count := m.counts[page][level]
	z := int(level) + m.cfg.Step*count
	if m.cfg.MaintainLevelBoundaries {
		if limit := nextLevelBase(level) - 1; z > limit {
			logger.Debug("z clamped to level boundary", "page", page, "level", level.String())
			z = limit
		}
	}
	m.counts[page][level] = count + 1

	m.nextID++
	now := m.now()
	layer := &LayerInfo{
		ID:      fmt.Sprintf("layer-%d", m.nextID),
		Page:    page,
		Rect:    rect,
		Level:   level,
		Z:       z,
		Visible: true,
		Created: now,
		Updated: now,
	}
	m.insert(layer)

	snapshot := *layer
	m.record(historyAction{
		label: "add " + layer.ID,
		undo: func(m *Manager) {
			m.remove(snapshot.ID)
			if m.counts[snapshot.Page][snapshot.Level] > 0 {
				m.counts[snapshot.Page][snapshot.Level]--
			}
		},
		redo: func(m *Manager) {
			c := snapshot
			m.insert(&c)
			m.counts[snapshot.Page][snapshot.Level]++
		},
	})
	return *layer, nil
}

func (m *Manager) insert(layer *LayerInfo) {
	m.layers[layer.ID] = layer
	if m.pages[layer.Page] == nil {
		m.pages[layer.Page] = make(map[string]*LayerInfo)
	}
	m.pages[layer.Page][layer.ID] = layer
	if layer.Group != "" {
		m.groups[layer.Group] = append(m.groups[layer.Group], layer.ID)
	}
}

func (m *Manager) remove(id string) *LayerInfo {
	layer, ok := m.layers[id]
	if !ok {
		return nil
	}
	delete(m.layers, id)
	delete(m.pages[layer.Page], id)
	if layer.Group != "" {
		m.groups[layer.Group] = withoutString(m.groups[layer.Group], id)
		if len(m.groups[layer.Group]) == 0 {
			delete(m.groups, layer.Group)
		}
	}
	return layer
}

// Remove deletes a layer.
func (m *Manager) Remove(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	layer := m.remove(id)
	if layer == nil {
		return fmt.Errorf("%w: %s", ErrLayerNotFound, id)
	}
	snapshot := *layer
	m.record(historyAction{
		label: "remove " + id,
		undo:  func(m *Manager) { c := snapshot; m.insert(&c) },
		redo:  func(m *Manager) { m.remove(snapshot.ID) },
	})
	return nil
}

// SetVisible toggles a layer's visibility.
func (m *Manager) SetVisible(id string, visible bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	layer, ok := m.layers[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrLayerNotFound, id)
	}
	layer.Visible = visible
	layer.Updated = m.now()
	return nil
}

// SetLocked locks or unlocks a layer. Locked layers refuse every
// reorder operation.
func (m *Manager) SetLocked(id string, locked bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	layer, ok := m.layers[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrLayerNotFound, id)
	}
	layer.Locked = locked
	layer.Updated = m.now()
	return nil
}

// setZ moves a layer and records the inverse.
func (m *Manager) setZ(layer *LayerInfo, z int, level LayerLevel, label string) {
	oldZ, oldLevel := layer.Z, layer.Level
	layer.Z = z
	layer.Level = level
	layer.Updated = m.now()
	id := layer.ID
	m.record(historyAction{
		label: label,
		undo: func(m *Manager) {
			if l, ok := m.layers[id]; ok {
				l.Z, l.Level = oldZ, oldLevel
			}
		},
		redo: func(m *Manager) {
			if l, ok := m.layers[id]; ok {
				l.Z, l.Level = z, level
			}
		},
	})
}

// MoveAbove stacks layer id directly above ref.
func (m *Manager) MoveAbove(id, ref string) error {
	return m.moveRelative(id, ref, 1)
}

// MoveBelow stacks layer id directly below ref.
func (m *Manager) MoveBelow(id, ref string) error {
	return m.moveRelative(id, ref, -1)
}

func (m *Manager) moveRelative(id, ref string, offset int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	layer, ok := m.layers[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrLayerNotFound, id)
	}
	if layer.Locked {
		return fmt.Errorf("move %s: %w", id, ErrLayerLocked)
	}
	refLayer, ok := m.layers[ref]
	if !ok {
		return fmt.Errorf("%w: %s", ErrLayerNotFound, ref)
	}
	level := layer.Level
	if refLayer.Level != layer.Level {
		if !m.cfg.AllowCrossLevelMovement {
			return fmt.Errorf("move %s relative to %s: %w", id, ref, ErrCrossLevel)
		}
		level = refLayer.Level
	}
	m.setZ(layer, refLayer.Z+offset, level, fmt.Sprintf("move %s near %s", id, ref))
	return nil
}

// BringToFront raises the layer one step above the highest sibling in
// its level band. Repeated raises keep increasing z, so alternating
// calls on two layers never stall at a shared ceiling.
func (m *Manager) BringToFront(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	layer, ok := m.layers[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrLayerNotFound, id)
	}
	if layer.Locked {
		return fmt.Errorf("front %s: %w", id, ErrLayerLocked)
	}
	top := int(layer.Level)
	for _, l := range m.pages[layer.Page] {
		if l.Level == layer.Level && l.ID != id && l.Z >= top {
			top = l.Z
		}
	}
	m.setZ(layer, top+m.cfg.Step, layer.Level, "front "+id)
	return nil
}

// SendToBack lowers the layer below everything in its level band on
// its page, clamped at the band base.
func (m *Manager) SendToBack(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	layer, ok := m.layers[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrLayerNotFound, id)
	}
	if layer.Locked {
		return fmt.Errorf("back %s: %w", id, ErrLayerLocked)
	}
	bottom := layer.Z
	for _, l := range m.pages[layer.Page] {
		if l.Level == layer.Level && l.ID != id && l.Z <= bottom {
			bottom = l.Z
		}
	}
	z := bottom - m.cfg.Step
	if z < int(layer.Level) {
		z = int(layer.Level)
	}
	m.setZ(layer, z, layer.Level, "back "+id)
	return nil
}

// BringForward swaps the layer's z with the nearest same-level sibling
// above it. Already on top of its band is a no-op.
func (m *Manager) BringForward(id string) error {
	return m.swapAdjacent(id, true)
}

// SendBackward swaps the layer's z with the nearest same-level sibling
// below it. Already at the bottom of its band is a no-op.
func (m *Manager) SendBackward(id string) error {
	return m.swapAdjacent(id, false)
}

func (m *Manager) swapAdjacent(id string, up bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	layer, ok := m.layers[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrLayerNotFound, id)
	}
	if layer.Locked {
		return fmt.Errorf("restack %s: %w", id, ErrLayerLocked)
	}
	var neighbor *LayerInfo
	for _, l := range m.pages[layer.Page] {
		if l.ID == id || l.Level != layer.Level {
			continue
		}
		if up && l.Z > layer.Z {
			if neighbor == nil || l.Z < neighbor.Z {
				neighbor = l
			}
		}
		if !up && l.Z < layer.Z {
			if neighbor == nil || l.Z > neighbor.Z {
				neighbor = l
			}
		}
	}
	if neighbor == nil {
		return nil
	}
	if neighbor.Locked {
		return fmt.Errorf("restack %s past %s: %w", id, neighbor.ID, ErrLayerLocked)
	}
	m.swapZ(layer, neighbor, "restack "+id)
	return nil
}

// swapZ exchanges two layers' z values and records one history entry.
func (m *Manager) swapZ(a, b *LayerInfo, label string) {
	az, bz := a.Z, b.Z
	a.Z, b.Z = bz, az
	now := m.now()
	a.Updated, b.Updated = now, now
	aID, bID := a.ID, b.ID
	m.record(historyAction{
		label: label,
		undo: func(m *Manager) {
			if la, ok := m.layers[aID]; ok {
				la.Z = az
			}
			if lb, ok := m.layers[bID]; ok {
				lb.Z = bz
			}
		},
		redo: func(m *Manager) {
			if la, ok := m.layers[aID]; ok {
				la.Z = bz
			}
			if lb, ok := m.layers[bID]; ok {
				lb.Z = az
			}
		},
	})
}

// MoveToLevel reassigns the layer to another semantic band, taking the
// next free z slot there. Requires cross-level movement to be enabled.
func (m *Manager) MoveToLevel(id string, level LayerLevel) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	layer, ok := m.layers[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrLayerNotFound, id)
	}
	if layer.Locked {
		return fmt.Errorf("relevel %s: %w", id, ErrLayerLocked)
	}
	if !m.cfg.AllowCrossLevelMovement {
		return fmt.Errorf("relevel %s: %w", id, ErrCrossLevel)
	}
	if layer.Level == level {
		return nil
	}
	if m.counts[layer.Page] == nil {
		m.counts[layer.Page] = make(map[LayerLevel]int)
	}
	count := m.counts[layer.Page][level]
	m.counts[layer.Page][level] = count + 1
	m.setZ(layer, int(level)+m.cfg.Step*count, level, fmt.Sprintf("relevel %s to %s", id, level))
	return nil
}

// SwapLayers exchanges the z positions of two layers on the same page.
func (m *Manager) SwapLayers(a, b string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	la, ok := m.layers[a]
	if !ok {
		return fmt.Errorf("%w: %s", ErrLayerNotFound, a)
	}
	lb, ok := m.layers[b]
	if !ok {
		return fmt.Errorf("%w: %s", ErrLayerNotFound, b)
	}
	if la.Page != lb.Page {
		return fmt.Errorf("swap %s with %s: %w", a, b, ErrPageMismatch)
	}
	if la.Locked || lb.Locked {
		return fmt.Errorf("swap %s with %s: %w", a, b, ErrLayerLocked)
	}
	m.swapZ(la, lb, fmt.Sprintf("swap %s with %s", a, b))
	return nil
}

// Layer returns a copy of one layer.
func (m *Manager) Layer(id string) (LayerInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	layer, ok := m.layers[id]
	if !ok {
		return LayerInfo{}, fmt.Errorf("%w: %s", ErrLayerNotFound, id)
	}
	return *layer, nil
}

// Layers returns a page's layers sorted bottom to top.
func (m *Manager) Layers(page int) []LayerInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sortedLayers(page)
}

func (m *Manager) sortedLayers(page int) []LayerInfo {
	out := make([]LayerInfo, 0, len(m.pages[page]))
	for _, l := range m.pages[page] {
		out = append(out, *l)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Z != out[j].Z {
			return out[i].Z < out[j].Z
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// LayersAt returns the layers whose rectangle contains the point,
// topmost first.
func (m *Manager) LayersAt(page int, x, y float64) []LayerInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.sortedLayers(page)
	var out []LayerInfo
	for i := len(all) - 1; i >= 0; i-- {
		if all[i].Rect.Contains(x, y) {
			out = append(out, all[i])
		}
	}
	return out
}

// Collisions reports every layer on the page overlapping rect,
// classified by how complete the overlap is. Fraction compares the
// overlap to the smaller of the two rectangles.
func (m *Manager) Collisions(page int, rect Rect) []CollisionInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []CollisionInfo
	for _, l := range m.sortedLayers(page) {
		ci, ok := m.classify(rect, l)
		if ok {
			out = append(out, ci)
		}
	}
	return out
}

func (m *Manager) classify(rect Rect, l LayerInfo) (CollisionInfo, bool) {
	tol := m.cfg.CollisionTol
	if math.Abs(rect.LLX-l.Rect.LLX) <= tol && math.Abs(rect.LLY-l.Rect.LLY) <= tol &&
		math.Abs(rect.URX-l.Rect.URX) <= tol && math.Abs(rect.URY-l.Rect.URY) <= tol {
		return CollisionInfo{LayerID: l.ID, Kind: CollisionIdentical, Overlap: l.Rect, Fraction: 1}, true
	}
	overlap, ok := rect.Intersect(l.Rect)
	if !ok {
		return CollisionInfo{}, false
	}
	smaller := math.Min(rect.Area(), l.Rect.Area())
	if smaller <= 0 {
		return CollisionInfo{}, false
	}
	frac := overlap.Area() / smaller
	ci := CollisionInfo{LayerID: l.ID, Overlap: overlap, Fraction: frac}
	switch {
	case frac >= 0.95:
		ci.Kind = CollisionContains
	case frac >= 0.5:
		ci.Kind = CollisionFull
	default:
		ci.Kind = CollisionPartial
	}
	return ci, true
}

// Group bundles layers on the same page so they can be restacked
// together. Layers already in a group move to the new one.
func (m *Manager) Group(ids ...string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(ids) < 2 {
		return "", errors.New("group needs at least two layers")
	}
	page := -1
	for _, id := range ids {
		layer, ok := m.layers[id]
		if !ok {
			return "", fmt.Errorf("%w: %s", ErrLayerNotFound, id)
		}
		if page == -1 {
			page = layer.Page
		} else if layer.Page != page {
			return "", fmt.Errorf("group spans pages %d and %d", page, layer.Page)
		}
	}
	m.nextGp++
	gid := fmt.Sprintf("group-%d", m.nextGp)
	prev := make(map[string]string, len(ids))
	for _, id := range ids {
		layer := m.layers[id]
		prev[id] = layer.Group
		if layer.Group != "" {
			m.groups[layer.Group] = withoutString(m.groups[layer.Group], id)
		}
		layer.Group = gid
	}
	m.groups[gid] = append([]string(nil), ids...)
	members := append([]string(nil), ids...)
	m.record(historyAction{
		label: "group " + gid,
		undo: func(m *Manager) {
			delete(m.groups, gid)
			for _, id := range members {
				if l, ok := m.layers[id]; ok {
					l.Group = prev[id]
				}
			}
		},
		redo: func(m *Manager) {
			m.groups[gid] = append([]string(nil), members...)
			for _, id := range members {
				if l, ok := m.layers[id]; ok {
					l.Group = gid
				}
			}
		},
	})
	return gid, nil
}

// Ungroup dissolves a group, leaving layer stacking untouched.
func (m *Manager) Ungroup(gid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	members, ok := m.groups[gid]
	if !ok {
		return fmt.Errorf("%w: %s", ErrGroupNotFound, gid)
	}
	saved := append([]string(nil), members...)
	delete(m.groups, gid)
	for _, id := range saved {
		if l, ok := m.layers[id]; ok {
			l.Group = ""
		}
	}
	m.record(historyAction{
		label: "ungroup " + gid,
		undo: func(m *Manager) {
			m.groups[gid] = append([]string(nil), saved...)
			for _, id := range saved {
				if l, ok := m.layers[id]; ok {
					l.Group = gid
				}
			}
		},
		redo: func(m *Manager) {
			delete(m.groups, gid)
			for _, id := range saved {
				if l, ok := m.layers[id]; ok {
					l.Group = ""
				}
			}
		},
	})
	return nil
}

// BringGroupToFront raises every member of the group to the top of
// its level band, preserving the members' relative order. Locked
// members are left in place.
func (m *Manager) BringGroupToFront(gid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	members, ok := m.groups[gid]
	if !ok {
		return fmt.Errorf("%w: %s", ErrGroupNotFound, gid)
	}
	ordered := make([]*LayerInfo, 0, len(members))
	for _, id := range members {
		if l, ok := m.layers[id]; ok && !l.Locked {
			ordered = append(ordered, l)
		}
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Z < ordered[j].Z })
	for _, layer := range ordered {
		top := int(layer.Level)
		for _, l := range m.pages[layer.Page] {
			if l.Level == layer.Level && l.ID != layer.ID && l.Z >= top {
				top = l.Z
			}
		}
		m.setZ(layer, top+1, layer.Level, "group front "+layer.ID)
	}
	return nil
}

// Undo reverses the most recent action.
func (m *Manager) Undo() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cursor == 0 {
		return ErrHistoryEmpty
	}
	m.cursor--
	m.history[m.cursor].undo(m)
	return nil
}

// Redo re-applies the most recently undone action.
func (m *Manager) Redo() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cursor >= len(m.history) {
		return ErrRedoEmpty
	}
	m.history[m.cursor].redo(m)
	m.cursor++
	return nil
}

// HistoryLen returns how many undoable actions are recorded.
func (m *Manager) HistoryLen() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cursor
}

// Stats summarizes one page.
func (m *Manager) Stats(page int) ZOrderStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := ZOrderStats{PerLevel: make(map[LayerLevel]int)}
	groups := make(map[string]bool)
	for _, l := range m.pages[page] {
		st.Layers++
		st.PerLevel[l.Level]++
		if l.Z > st.TopZ {
			st.TopZ = l.Z
		}
		if l.Group != "" {
			groups[l.Group] = true
		}
	}
	st.Groups = len(groups)
	st.History = m.cursor
	return st
}

func withoutString(s []string, v string) []string {
	out := s[:0]
	for _, x := range s {
		if x != v {
			out = append(out, x)
		}
	}
	return out
}
