package commands

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/ICDSystems/ICD.Connect.Devices-sub000/pkg/log"
)

// Stats holds aggregate statistics about a log file.
type Stats struct {
	TotalEvents       int
	EventsByLayer     map[log.Layer]int
	EventsByCategory  map[log.Category]int
	EventsByDirection map[log.Direction]int
	Sessions          map[string]*SessionStats
	Activities        map[string]int
	Errors            int
	Start, End        time.Time
}

// SessionStats holds statistics for a single session.
type SessionStats struct {
	FirstSeen time.Time
	LastSeen  time.Time
	Events    int
	Role      log.Role
	Remote    string
}

// Collect reads every event of path into a Stats.
func Collect(path string) (*Stats, error) {
	reader, err := log.NewReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	stats := &Stats{
		EventsByLayer:     make(map[log.Layer]int),
		EventsByCategory:  make(map[log.Category]int),
		EventsByDirection: make(map[log.Direction]int),
		Sessions:          make(map[string]*SessionStats),
		Activities:        make(map[string]int),
	}

	for {
		event, err := reader.Next()
		if err == io.EOF {
			return stats, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read event: %w", err)
		}
		stats.add(event)
	}
}

func (s *Stats) add(event log.Event) {
	s.TotalEvents++
	s.EventsByLayer[event.Layer]++
	s.EventsByCategory[event.Category]++
	s.EventsByDirection[event.Direction]++

	if s.Start.IsZero() || event.Timestamp.Before(s.Start) {
		s.Start = event.Timestamp
	}
	if event.Timestamp.After(s.End) {
		s.End = event.Timestamp
	}

	if event.SessionID != "" {
		ss, ok := s.Sessions[event.SessionID]
		if !ok {
			ss = &SessionStats{FirstSeen: event.Timestamp, LastSeen: event.Timestamp, Role: event.LocalRole}
			s.Sessions[event.SessionID] = ss
		}
		ss.Events++
		if event.Timestamp.After(ss.LastSeen) {
			ss.LastSeen = event.Timestamp
		}
		if ss.Remote == "" {
			ss.Remote = event.RemoteAddr
		}
	}

	if event.Activity != nil {
		s.Activities[event.Activity.Action]++
	}
	if event.Error != nil {
		s.Errors++
	}
}

// RunStats prints the statistics of path to w.
func RunStats(path string, w io.Writer) error {
	stats, err := Collect(path)
	if err != nil {
		return err
	}
	printStats(w, stats)
	return nil
}

func printStats(w io.Writer, stats *Stats) {
	fmt.Fprintln(w, "=== Device Protocol Log Statistics ===")
	fmt.Fprintln(w)

	if stats.TotalEvents > 0 {
		fmt.Fprintf(w, "Time Range: %s to %s\n", stats.Start.Format(time.RFC3339), stats.End.Format(time.RFC3339))
		fmt.Fprintf(w, "Duration:   %s\n", stats.End.Sub(stats.Start).Round(time.Second))
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Total Events: %d\n", stats.TotalEvents)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Layer:")
	for _, layer := range []log.Layer{log.LayerTransport, log.LayerWire, log.LayerTree, log.LayerControl} {
		if count := stats.EventsByLayer[layer]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", layer.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Category:")
	for _, cat := range []log.Category{log.CategoryMessage, log.CategoryActivity, log.CategoryState, log.CategoryError} {
		if count := stats.EventsByCategory[cat]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", cat.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Direction:")
	for _, dir := range []log.Direction{log.DirectionIn, log.DirectionOut, log.DirectionLocal} {
		if count := stats.EventsByDirection[dir]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", dir.String()+":", count)
		}
	}

	if len(stats.Activities) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Activities:")
		actions := make([]string, 0, len(stats.Activities))
		for a := range stats.Activities {
			actions = append(actions, a)
		}
		sort.Strings(actions)
		for _, a := range actions {
			fmt.Fprintf(w, "  %-14s %d\n", a+":", stats.Activities[a])
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Sessions: %d\n", len(stats.Sessions))
	ids := make([]string, 0, len(stats.Sessions))
	for id := range stats.Sessions {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return stats.Sessions[ids[i]].FirstSeen.Before(stats.Sessions[ids[j]].FirstSeen)
	})
	for _, id := range ids {
		ss := stats.Sessions[id]
		fmt.Fprintf(w, "  [%s] %s %d events, duration %s\n", shortenSessionID(id), ss.Role,
			ss.Events, ss.LastSeen.Sub(ss.FirstSeen).Round(time.Millisecond))
		if ss.Remote != "" {
			fmt.Fprintf(w, "           Remote: %s\n", ss.Remote)
		}
	}

	if stats.Errors > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Errors: %d\n", stats.Errors)
	}
}
