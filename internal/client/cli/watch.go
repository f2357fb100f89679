package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/dmitrijs2005/capsulekeeper/internal/client/clock"
)

// Watch counts down to a capsule's unlock, redrawing every
// CountdownInterval. It returns when the capsule unlocks or ctx is done.
// On a terminal the line is redrawn in place. Ctrl-C stops watching without
// leaving the REPL.
func (a *App) Watch(ctx context.Context, args []string) error {
	if err := needArgs(args, 1, "watch <capsule-id>"); err != nil {
		return err
	}
	c, err := a.capsules.Get(ctx, args[0])
	if err != nil {
		return err
	}

	inPlace := isTerminal(a.out)
	unlocked := make(chan struct{})
	cd := clock.NewCountdown(c.UnlockAt, func() { close(unlocked) })

	var shown clock.Remaining
	draw := func(r clock.Remaining) {
		shown = r
		line := fmt.Sprintf("%s: %s", c.ID, formatRemaining(r))
		if inPlace {
			a.printf("\r\033[K%s", line)
		} else {
			a.println(line)
		}
	}

	if r := cd.Sample(a.capsules.Now()); r.Unlocked {
		draw(r)
		if inPlace {
			a.println()
		}
		a.println("The capsule is open. Use 'show " + c.ID + "' to see it.")
		return nil
	}

	wctx, stopSignals := signal.NotifyContext(ctx, os.Interrupt)
	defer stopSignals()

	interval := a.config.CountdownInterval
	if interval <= 0 {
		interval = time.Second
	}
	stop := cd.Start(wctx, interval, a.capsules.Now, draw)
	select {
	case <-unlocked:
	case <-wctx.Done():
	}
	stop()
	if cd.Fired() && !shown.Unlocked {
		draw(cd.Last())
	}
	if inPlace {
		a.println()
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if !cd.Fired() {
		a.println("Stopped.")
		return nil
	}
	a.println("The capsule is open. Use 'show " + c.ID + "' to see it.")
	return nil
}
