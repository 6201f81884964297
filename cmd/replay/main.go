package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"

	"snake-arena/server/internal/journal"
)

func main() {
	var inPath string
	var every uint64
	flag.StringVar(&inPath, "in", "", "path of the match journal to replay")
	flag.Uint64Var(&every, "every", 0, "print a frame line every N ticks (0 prints none)")
	flag.Parse()

	if inPath == "" {
		fmt.Fprintln(os.Stderr, "--in is required")
		os.Exit(1)
	}

	file, err := os.Open(inPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open journal: %v\n", err)
		os.Exit(1)
	}
	defer file.Close()

	if err := replay(file, os.Stdout, every); err != nil {
		fmt.Fprintf(os.Stderr, "replay failed: %v\n", err)
		os.Exit(1)
	}
}

type playerSummary struct {
	id     int
	name   string
	best   int
	deaths int
	lastDC bool
	frames int
}

// replay prints the match header, optional per-frame lines and a final
// leaderboard ordered by best score.
func replay(r io.Reader, w io.Writer, every uint64) error {
	reader, err := journal.NewReader(r)
	if err != nil {
		return err
	}
	header := reader.Header()
	fmt.Fprintf(w, "match started %s size=%d walls=%d frame=%s\n",
		header.StartedAt.UTC().Format("2006-01-02 15:04:05"), header.Size, len(header.Walls), header.FramePeriod)

	players := make(map[int]*playerSummary)
	var frames, lastTick uint64
	for {
		frame, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		frames++
		lastTick = frame.Tick

		alive := 0
		for _, s := range frame.Snakes {
			p, ok := players[s.Snake]
			if !ok {
				p = &playerSummary{id: s.Snake, name: s.Name}
				players[s.Snake] = p
			}
			p.frames++
			if s.Score > p.best {
				p.best = s.Score
			}
			if s.Died {
				p.deaths++
			}
			p.lastDC = s.DC
			if s.Alive {
				alive++
			}
		}

		if every > 0 && frame.Tick%every == 0 {
			live := 0
			for _, p := range frame.Powers {
				if !p.Died {
					live++
				}
			}
			fmt.Fprintf(w, "tick %d: snakes=%d alive=%d powerups=%d\n", frame.Tick, len(frame.Snakes), alive, live)
		}
	}

	fmt.Fprintf(w, "frames=%d last_tick=%d players=%d\n", frames, lastTick, len(players))

	ordered := make([]*playerSummary, 0, len(players))
	for _, p := range players {
		ordered = append(ordered, p)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].best != ordered[j].best {
			return ordered[i].best > ordered[j].best
		}
		return ordered[i].id < ordered[j].id
	})
	for rank, p := range ordered {
		status := "connected"
		if p.lastDC {
			status = "disconnected"
		}
		fmt.Fprintf(w, "%d. %s (id %d) best=%d deaths=%d frames=%d %s\n",
			rank+1, p.name, p.id, p.best, p.deaths, p.frames, status)
	}
	return nil
}
