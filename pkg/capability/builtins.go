package capability

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"
)

// RegisterBuiltins registers the built-in capabilities on the registry.
func RegisterBuiltins(r *Registry) {
	scratch := NewScratchStore()
	r.Register(&currentTimeCapability{})
	r.Register(&makeOutlineCapability{})
	r.Register(&allocateBlocksCapability{})
	r.Register(&detectConflictsCapability{})
	r.Register(&storeResultCapability{store: scratch})
}

// currentTimeCapability reports the current time.
type currentTimeCapability struct{}

func (c *currentTimeCapability) Name() string        { return "current_time" }
func (c *currentTimeCapability) Description() string { return "Returns the current date and time" }
func (c *currentTimeCapability) ParamSchema() string { return "" }

func (c *currentTimeCapability) Invoke(_ context.Context, _ map[string]interface{}) (map[string]interface{}, error) {
	now := time.Now()
	return map[string]interface{}{
		"now":     now.Format(time.RFC3339),
		"unix":    now.Unix(),
		"weekday": now.Weekday().String(),
	}, nil
}

// makeOutlineCapability splits a topic into a numbered outline of sections.
type makeOutlineCapability struct{}

func (c *makeOutlineCapability) Name() string { return "make_outline" }
func (c *makeOutlineCapability) Description() string {
	return "Breaks a topic into a numbered outline of sections"
}

func (c *makeOutlineCapability) ParamSchema() string {
	return `
topic:    string & !=""
sections: int & >=1 & <=20 | *4
`
}

func (c *makeOutlineCapability) Invoke(_ context.Context, params map[string]interface{}) (map[string]interface{}, error) {
	topic, _ := params["topic"].(string)
	sections := intParam(params, "sections", 4)

	outline := make([]interface{}, 0, sections)
	for i := 1; i <= sections; i++ {
		outline = append(outline, map[string]interface{}{
			"section": i,
			"title":   fmt.Sprintf("%s, part %d of %d", topic, i, sections),
		})
	}

	return map[string]interface{}{
		"topic":   topic,
		"outline": outline,
	}, nil
}

// allocateBlocksCapability spreads work items over a number of days.
type allocateBlocksCapability struct{}

func (c *allocateBlocksCapability) Name() string { return "allocate_blocks" }
func (c *allocateBlocksCapability) Description() string {
	return "Allocates work items into daily time blocks"
}

func (c *allocateBlocksCapability) ParamSchema() string {
	return `
items:         [...string] & [_, ...]
days:          int & >=1 | *7
hours_per_day: number & >0 & <=16 | *2
`
}

func (c *allocateBlocksCapability) Invoke(_ context.Context, params map[string]interface{}) (map[string]interface{}, error) {
	items := stringSliceParam(params, "items")
	days := intParam(params, "days", 7)
	hoursPerDay := floatParam(params, "hours_per_day", 2)

	perDay := int(math.Ceil(float64(len(items)) / float64(days)))
	if perDay < 1 {
		perDay = 1
	}

	blocks := make([]interface{}, 0, len(items))
	for i, item := range items {
		day := i/perDay + 1
		if day > days {
			day = days
		}
		blocks = append(blocks, map[string]interface{}{
			"day":   day,
			"item":  item,
			"hours": hoursPerDay / float64(perDay),
		})
	}

	return map[string]interface{}{
		"blocks":        blocks,
		"days":          days,
		"hours_per_day": hoursPerDay,
	}, nil
}

// detectConflictsCapability finds days that are over-allocated.
type detectConflictsCapability struct{}

func (c *detectConflictsCapability) Name() string { return "detect_conflicts" }
func (c *detectConflictsCapability) Description() string {
	return "Detects over-allocated days in a block schedule"
}

func (c *detectConflictsCapability) ParamSchema() string {
	return `
blocks:    [...{day: int, hours: number, ...}]
max_hours: number & >0 | *8
`
}

func (c *detectConflictsCapability) Invoke(_ context.Context, params map[string]interface{}) (map[string]interface{}, error) {
	maxHours := floatParam(params, "max_hours", 8)

	totals := map[int]float64{}
	if blocks, ok := params["blocks"].([]interface{}); ok {
		for _, b := range blocks {
			block, ok := b.(map[string]interface{})
			if !ok {
				continue
			}
			day := intParam(block, "day", 0)
			totals[day] += floatParam(block, "hours", 0)
		}
	}

	conflicts := make([]interface{}, 0)
	for day, hours := range totals {
		if hours > maxHours {
			conflicts = append(conflicts, map[string]interface{}{
				"day":       day,
				"allocated": hours,
				"max_hours": maxHours,
			})
		}
	}

	return map[string]interface{}{
		"conflicts": conflicts,
		"clean":     len(conflicts) == 0,
	}, nil
}

// ScratchStore is a process-local key value store shared by store_result
// invocations within one goal run.
type ScratchStore struct {
	mu   sync.RWMutex
	data map[string]interface{}
}

// NewScratchStore creates an empty scratch store.
func NewScratchStore() *ScratchStore {
	return &ScratchStore{data: make(map[string]interface{})}
}

// Get returns a stored value.
func (s *ScratchStore) Get(key string) (interface{}, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok
}

// storeResultCapability persists a value under a key in the scratch store.
type storeResultCapability struct {
	store *ScratchStore
}

func (c *storeResultCapability) Name() string { return "store_result" }
func (c *storeResultCapability) Description() string {
	return "Stores a value under a key for later steps"
}

func (c *storeResultCapability) ParamSchema() string {
	return `
key:   string & !=""
value: _
`
}

func (c *storeResultCapability) Invoke(_ context.Context, params map[string]interface{}) (map[string]interface{}, error) {
	key, _ := params["key"].(string)
	if strings.TrimSpace(key) == "" {
		return nil, fmt.Errorf("key must not be empty")
	}

	c.store.mu.Lock()
	c.store.data[key] = params["value"]
	c.store.mu.Unlock()

	return map[string]interface{}{
		"stored": true,
		"key":    key,
	}, nil
}

func intParam(params map[string]interface{}, key string, def int) int {
	switch v := params[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return def
	}
}

func floatParam(params map[string]interface{}, key string, def float64) float64 {
	switch v := params[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return def
	}
}

func stringSliceParam(params map[string]interface{}, key string) []string {
	switch v := params[key].(type) {
	case []string:
		return v
	case []interface{}:
		items := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				items = append(items, s)
			}
		}
		return items
	default:
		return nil
	}
}
