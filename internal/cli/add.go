package cli

import (
	"context"
	"log"
	"os"

	"github.com/oaktrail/treetrack/internal/app"
)

func (a *App) Add(ctx context.Context) error {
	path, err := GetSimpleText(a.reader, "Photo file", os.Stdout)
	if err != nil {
		return err
	}
	ref, err := a.core.ImportPhoto(ctx, path)
	if err != nil {
		log.Println(err.Error())
		return err
	}

	var p app.AddTreeParams
	if p.SiteID, err = GetSimpleText(a.reader, "Site id", os.Stdout); err != nil {
		return err
	}
	if p.SpeciesID, err = GetSimpleText(a.reader, "Species id", os.Stdout); err != nil {
		return err
	}
	if p.SupervisorID, err = GetSimpleText(a.reader, "Supervisor id", os.Stdout); err != nil {
		return err
	}
	if p.Coordinates, err = GetSimpleText(a.reader, "Coordinates (lat,lon)", os.Stdout); err != nil {
		return err
	}
	if p.Notes, err = GetMultiline(a.reader, "Notes", os.Stdout); err != nil {
		return err
	}

	tree, err := a.core.AddTree(ctx, p, ref)
	if err != nil {
		log.Println(err.Error())
		return err
	}
	printlnFn("Queued", tree.ID)
	return nil
}

func (a *App) AddSite(ctx context.Context) error {
	name, err := GetSimpleText(a.reader, "Site name", os.Stdout)
	if err != nil {
		return err
	}
	site, err := a.core.AddSite(ctx, name)
	if err != nil {
		log.Println(err.Error())
		return err
	}
	printlnFn("Created site", site.ID)
	return nil
}

func (a *App) Delete(ctx context.Context) error {
	id, err := GetSimpleText(a.reader, "Record id", os.Stdout)
	if err != nil {
		return err
	}
	if err := a.core.DeleteTree(ctx, id); err != nil {
		log.Println(err.Error())
		return err
	}
	return nil
}

func (a *App) Clear(ctx context.Context) error {
	if err := a.core.ClearQueue(ctx); err != nil {
		log.Println(err.Error())
		return err
	}
	printlnFn("Queue cleared")
	return nil
}
