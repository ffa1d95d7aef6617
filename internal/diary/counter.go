package diary

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Counter is a string→int tally that remembers the order in which keys were
// first inserted. The zero value is ready to use.
//
// Insertion order is what breaks ties in Max, and it survives a JSON round
// trip: keys are written and read back in the same order.
type Counter struct {
	keys   []string
	counts map[string]int
}

// CounterOf tallies keys one at a time, in order.
func CounterOf(keys ...string) Counter {
	var c Counter
	for _, k := range keys {
		c.Inc(k)
	}
	return c
}

// Inc adds one to key and returns the new count.
func (c *Counter) Inc(key string) int {
	return c.Add(key, 1)
}

// Add adds n to key and returns the new count.
func (c *Counter) Add(key string, n int) int {
	if c.counts == nil {
		c.counts = make(map[string]int)
	}
	if _, ok := c.counts[key]; !ok {
		c.keys = append(c.keys, key)
	}
	c.counts[key] += n
	return c.counts[key]
}

// Get returns the count for key (0 when absent).
func (c Counter) Get(key string) int {
	return c.counts[key]
}

// Len returns the number of distinct keys.
func (c Counter) Len() int {
	return len(c.keys)
}

// Keys returns the keys in insertion order.
func (c Counter) Keys() []string {
	out := make([]string, len(c.keys))
	copy(out, c.keys)
	return out
}

// Map returns a plain map copy of the counts.
func (c Counter) Map() map[string]int {
	out := make(map[string]int, len(c.counts))
	for k, v := range c.counts {
		out[k] = v
	}
	return out
}

// Max returns the key with the highest count. Ties go to the key inserted
// first. ok is false when the counter is empty.
func (c Counter) Max() (key string, count int, ok bool) {
	for _, k := range c.keys {
		if v := c.counts[k]; !ok || v > count {
			key, count, ok = k, v, true
		}
	}
	return key, count, ok
}

// Clone returns an independent copy.
func (c Counter) Clone() Counter {
	if c.keys == nil {
		return Counter{}
	}
	out := Counter{
		keys:   make([]string, len(c.keys)),
		counts: make(map[string]int, len(c.counts)),
	}
	copy(out.keys, c.keys)
	for k, v := range c.counts {
		out.counts[k] = v
	}
	return out
}

// Equal reports whether both counters hold the same keys, in the same order,
// with the same counts.
func (c Counter) Equal(o Counter) bool {
	if len(c.keys) != len(o.keys) {
		return false
	}
	for i, k := range c.keys {
		if o.keys[i] != k || o.counts[k] != c.counts[k] {
			return false
		}
	}
	return true
}

// MarshalJSON writes the counter as a JSON object in insertion order.
func (c Counter) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range c.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.WriteString(strconv.Itoa(c.counts[k]))
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object, keeping the key order of the document.
func (c *Counter) UnmarshalJSON(data []byte) error {
	*c = Counter{}
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("counter: expected JSON object, got %v", tok)
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("counter: expected string key, got %v", tok)
		}
		var n int
		if err := dec.Decode(&n); err != nil {
			return fmt.Errorf("counter: value for %q: %w", key, err)
		}
		c.Add(key, n)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}
