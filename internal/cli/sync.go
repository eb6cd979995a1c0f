package cli

import (
	"context"
	"fmt"
)

func (a *App) Sync(ctx context.Context) {
	a.core.Sync(ctx)
	printlnFn(fmt.Sprintf("Synced: %d sites, %d species, %d supervisors",
		len(a.core.Sites.Get()), len(a.core.Species.Get()), len(a.core.Supervisors.Get())))
}

func (a *App) Upload(ctx context.Context) {
	progress, cancel := a.core.UploadProgress().Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for p := range progress {
			printlnFn(fmt.Sprintf("%s %3.0f%%", p.TreeID, p.Fraction*100))
		}
	}()

	a.core.Upload(ctx)
	cancel()
	<-done

	if msg := a.core.Errors.Get(); msg != "" {
		printlnFn("Upload halted:", msg)
	}
	printlnFn(fmt.Sprintf("%d records still pending", len(a.core.Pending.Get())))
}

func (a *App) CancelUpload() {
	a.core.CancelUpload()
}
