// Package corpus holds the hand-labelled seed queries the router compares
// incoming requests against.
package corpus

import (
	"fmt"
	"strings"
)

// Tier labels how hard a seed is for the on-device model.
const (
	TierEasy   = "easy"   // single tool, one tool available
	TierMedium = "medium" // single tool, several tools available
	TierHard   = "hard"   // several tools in one request
)

// SeedEntry is one labelled example query
type SeedEntry struct {
	Text       string    `json:"text" yaml:"text" parquet:"text"`
	ToolCount  int       `json:"tool_count" yaml:"tool_count" parquet:"tool_count"`
	Privacy    float64   `json:"privacy" yaml:"privacy" parquet:"privacy"`
	Complexity float64   `json:"complexity" yaml:"complexity" parquet:"complexity"`
	Tools      []string  `json:"tools" yaml:"tools" parquet:"tools"`
	Tier       string    `json:"tier,omitempty" yaml:"tier,omitempty" parquet:"tier,optional"`
	Embedding  []float32 `json:"embedding,omitempty" yaml:"embedding,omitempty" parquet:"embedding"`
}

// MultiTool reports whether the seed expects more than one tool call.
func (e SeedEntry) MultiTool() bool {
	return e.ToolCount >= 2
}

// Clone returns a deep copy of the entry.
func (e SeedEntry) Clone() SeedEntry {
	c := e
	if e.Tools != nil {
		c.Tools = append([]string(nil), e.Tools...)
	}
	if e.Embedding != nil {
		c.Embedding = append([]float32(nil), e.Embedding...)
	}
	return c
}

// Validate checks the entry's labels are usable.
func (e SeedEntry) Validate() error {
	if strings.TrimSpace(e.Text) == "" {
		return fmt.Errorf("empty text")
	}
	if e.ToolCount < 1 {
		return fmt.Errorf("tool_count must be at least 1, got %d", e.ToolCount)
	}
	if e.Privacy < 0 || e.Privacy > 1 {
		return fmt.Errorf("privacy %.2f out of range [0,1]", e.Privacy)
	}
	if e.Complexity < 0 || e.Complexity > 1 {
		return fmt.Errorf("complexity %.2f out of range [0,1]", e.Complexity)
	}
	if len(e.Tools) > 0 && len(e.Tools) != e.ToolCount {
		return fmt.Errorf("tools lists %d names but tool_count is %d", len(e.Tools), e.ToolCount)
	}
	return nil
}

// CloneAll deep-copies a slice of entries.
func CloneAll(entries []SeedEntry) []SeedEntry {
	out := make([]SeedEntry, len(entries))
	for i, e := range entries {
		out[i] = e.Clone()
	}
	return out
}

// Default returns a fresh copy of the built-in corpus.
func Default() []SeedEntry {
	return CloneAll(builtin)
}

func seed(tier, text string, privacy, complexity float64, tools ...string) SeedEntry {
	return SeedEntry{
		Text:       text,
		ToolCount:  len(tools),
		Privacy:    privacy,
		Complexity: complexity,
		Tools:      tools,
		Tier:       tier,
	}
}

var builtin = []SeedEntry{
	seed(TierEasy, "What's the weather in San Francisco?", 0.0, 0.1, "get_weather"),
	seed(TierEasy, "What is the weather like in Tokyo right now?", 0.0, 0.1, "get_weather"),
	seed(TierEasy, "Set an alarm for 7 AM", 0.0, 0.1, "set_alarm"),
	seed(TierEasy, "Wake me up at 6:30 in the morning", 0.0, 0.1, "set_alarm"),
	seed(TierEasy, "Play Bohemian Rhapsody", 0.0, 0.1, "play_music"),
	seed(TierEasy, "Play some jazz music", 0.0, 0.1, "play_music"),
	seed(TierEasy, "Send a message to John saying hello", 0.3, 0.15, "send_message"),
	seed(TierEasy, "Text Mom that I'll be late", 0.3, 0.15, "send_message"),
	seed(TierEasy, "Remind me to buy groceries at 5 PM", 0.0, 0.15, "create_reminder"),
	seed(TierEasy, "Create a reminder to call the dentist tomorrow", 0.0, 0.15, "create_reminder"),
	seed(TierEasy, "Set a timer for 10 minutes", 0.0, 0.1, "set_timer"),
	seed(TierEasy, "Start a 5 minute timer", 0.0, 0.1, "set_timer"),
	seed(TierEasy, "Search for Lisa in my contacts", 0.3, 0.1, "search_contacts"),
	seed(TierEasy, "Find John's contact information", 0.3, 0.1, "search_contacts"),

	seed(TierMedium, "Is it going to rain today?", 0.0, 0.2, "get_weather"),
	seed(TierMedium, "Message Lisa about the meeting", 0.3, 0.2, "send_message"),
	seed(TierMedium, "Put on relaxing background music", 0.0, 0.2, "play_music"),
	seed(TierMedium, "I need a reminder for my doctor appointment at 3", 0.0, 0.25, "create_reminder"),
	seed(TierMedium, "Can you look up Sarah's number?", 0.3, 0.2, "search_contacts"),
	seed(TierMedium, "Set my alarm for tomorrow morning at 8", 0.0, 0.2, "set_alarm"),
	seed(TierMedium, "Start a countdown for 15 minutes", 0.0, 0.2, "set_timer"),
	seed(TierMedium, "Tell me the temperature in London", 0.0, 0.2, "get_weather"),
	seed(TierMedium, "Let Bob know I'm running late", 0.3, 0.2, "send_message"),

	seed(TierHard, "Set an alarm for 7 AM and check the weather", 0.0, 0.4, "set_alarm", "get_weather"),
	seed(TierHard, "Send a message to John and set a reminder to follow up", 0.3, 0.4, "send_message", "create_reminder"),
	seed(TierHard, "Timer for 10 min, play jazz, and remind me to check the oven", 0.0, 0.55, "set_timer", "play_music", "create_reminder"),
	seed(TierHard, "What's the weather and play some music", 0.0, 0.35, "get_weather", "play_music"),
	seed(TierHard, "Set an alarm for 6 AM, check the weather, and send a message to Bob", 0.3, 0.55, "set_alarm", "get_weather", "send_message"),
	seed(TierHard, "Remind me about the meeting and text Sarah the agenda", 0.3, 0.4, "create_reminder", "send_message"),
	seed(TierHard, "Play Beethoven and set a timer for 30 minutes", 0.0, 0.35, "play_music", "set_timer"),
	seed(TierHard, "Search for Dave's number and send him a message saying hi", 0.3, 0.4, "search_contacts", "send_message"),
	seed(TierHard, "Get the weather in NYC and set a reminder to bring an umbrella", 0.0, 0.4, "get_weather", "create_reminder"),
	seed(TierHard, "Send a message to Lisa, set a timer for 5 minutes, and play relaxing music", 0.3, 0.55, "send_message", "set_timer", "play_music"),
	seed(TierHard, "Check the weather and set an alarm for tomorrow", 0.0, 0.35, "get_weather", "set_alarm"),
	seed(TierHard, "Message John about dinner and remind me to make a reservation at 5", 0.3, 0.45, "send_message", "create_reminder"),
}
