package cli

import (
	"context"
	"fmt"
)

func (a *App) Queue(ctx context.Context) {
	pending := a.core.Pending.Get()
	if len(pending) == 0 {
		printlnFn("Queue is empty")
		return
	}
	for _, t := range pending {
		printlnFn(fmt.Sprintf("%s  site=%s species=%s supervisor=%s coords=%s created=%s",
			t.ID, t.SiteID, t.SpeciesID, t.SupervisorID, t.Coordinates,
			t.CreatedAt.Format("2006-01-02 15:04")))
	}
}

func (a *App) Sites(ctx context.Context) {
	for _, s := range a.core.Sites.Get() {
		printlnFn(fmt.Sprintf("%s  %s", s.ID, s.Name))
	}
}

func (a *App) Recent(ctx context.Context) {
	ids := a.core.RecentSpecies(ctx)
	if len(ids) == 0 {
		printlnFn("No species used today")
		return
	}
	for _, id := range ids {
		printlnFn(id)
	}
}
