package cli

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/capsulekeeper/internal/client/models"
	"github.com/dustin/go-humanize"
)

// List prints the user's capsules. Locked capsules show a masked title and
// their countdown.
func (a *App) List(ctx context.Context) error {
	list, err := a.capsules.List(ctx)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		a.println("No capsules yet. Use 'create' to make one.")
		return nil
	}

	now := a.capsules.Now()
	rows := make([][]string, 0, len(list))
	for i := range list {
		c := &list[i]
		v := a.capsules.Verdict(c)
		left := formatRemaining(v.Remaining)
		if v.Unlocked {
			left = humanize.RelTime(c.UnlockAt, now, "ago", "from now")
		}
		title := c.Title
		if v.FieldsObscured {
			title = obscure(title)
		}
		rows = append(rows, []string{
			c.ID,
			title,
			stateLabel(v),
			c.UnlockAt.Local().Format(timeLayout),
			left,
			strconv.Itoa(len(c.Media)),
		})
	}
	a.println(renderTable(
		[]string{"ID", "Title", "State", "Unlocks", "Remaining", "Media"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight},
	))
	return nil
}

// Show prints one capsule. While it is locked the title and message are
// masked and media can be listed but not opened.
func (a *App) Show(ctx context.Context, args []string) error {
	if err := needArgs(args, 1, "show <capsule-id>"); err != nil {
		return err
	}
	c, err := a.capsules.Get(ctx, args[0])
	if err != nil {
		return err
	}
	v := a.capsules.Verdict(c)
	now := a.capsules.Now()

	title, desc := c.Title, c.Description
	if v.FieldsObscured {
		title, desc = obscure(title), obscure(desc)
	}

	a.printf("Capsule %s\n", c.ID)
	a.printf("  Title:     %s\n", title)
	if desc != "" {
		a.printf("  Message:   %s\n", strings.ReplaceAll(desc, "\n", "\n             "))
	}
	a.printf("  Unlocks:   %s\n", formatUnlock(c.UnlockAt, now))
	if c.IsGroup {
		a.println("  Group capsule")
	}
	if !v.Unlocked {
		a.printf("  Status:    locked, %s remaining\n", formatRemaining(v.Remaining))
	}
	if len(c.Media) == 0 {
		a.println("  No media.")
		return nil
	}

	rows := make([][]string, 0, len(c.Media))
	for _, m := range c.Media {
		name := m.Filename
		if v.FieldsObscured {
			name = obscure(name)
		}
		uploaded := ""
		if !m.UploadedAt.IsZero() {
			uploaded = humanize.Time(m.UploadedAt)
		}
		rows = append(rows, []string{m.ID, name, string(m.FileType), uploaded})
	}
	a.println(renderTable([]string{"Media ID", "File", "Type", "Uploaded"}, rows, nil))
	if !v.MediaOperable {
		a.println("  Media opens when the capsule unlocks.")
	}
	return nil
}

// Create prompts for a new capsule.
func (a *App) Create(ctx context.Context) error {
	title, err := a.ask("Title")
	if err != nil {
		return err
	}
	desc, err := GetMultiline(a.reader, "Message for the future (optional)", a.out)
	if err != nil {
		return err
	}
	when, err := a.ask("Unlock at (YYYY-MM-DD HH:MM, local time)")
	if err != nil {
		return err
	}
	unlockAt, err := ParseDateTime(when, time.Local)
	if err != nil {
		return err
	}
	members, err := a.ask("Group members, comma separated emails (empty for a personal capsule)")
	if err != nil {
		return err
	}

	draft := models.CapsuleDraft{
		Title:        title,
		Description:  desc,
		UnlockAt:     unlockAt,
		GroupMembers: GetList(members),
	}
	draft.IsGroup = len(draft.GroupMembers) > 0

	c, err := a.capsules.Create(ctx, draft)
	if err != nil {
		return err
	}
	a.printf("Capsule %s created, unlocks %s.\n", c.ID, formatUnlock(c.UnlockAt, a.capsules.Now()))
	return nil
}

// Update edits a locked capsule. Empty answers keep the current value.
func (a *App) Update(ctx context.Context, args []string) error {
	if err := needArgs(args, 1, "update <capsule-id>"); err != nil {
		return err
	}
	c, err := a.capsules.Get(ctx, args[0])
	if err != nil {
		return err
	}

	var upd models.CapsuleUpdate
	title, err := a.ask("New title [" + c.Title + "]")
	if err != nil {
		return err
	}
	if title != "" {
		upd.Title = &title
	}
	desc, err := a.ask("New message (empty to keep, '-' to clear)")
	if err != nil {
		return err
	}
	switch desc {
	case "":
	case "-":
		empty := ""
		upd.Description = &empty
	default:
		upd.Description = &desc
	}
	when, err := a.ask("New unlock time [" + c.UnlockAt.Local().Format(timeLayout) + "]")
	if err != nil {
		return err
	}
	if when != "" {
		t, err := ParseDateTime(when, time.Local)
		if err != nil {
			return err
		}
		upd.UnlockAt = &t
	}

	out, err := a.capsules.Update(ctx, c.ID, upd)
	if err != nil {
		return err
	}
	a.printf("Capsule %s saved, unlocks %s.\n", out.ID, formatUnlock(out.UnlockAt, a.capsules.Now()))
	return nil
}

// Delete removes a capsule after confirmation.
func (a *App) Delete(ctx context.Context, args []string) error {
	if err := needArgs(args, 1, "delete <capsule-id>"); err != nil {
		return err
	}
	ok, err := a.confirm("Delete capsule " + args[0] + " and all its media?")
	if err != nil || !ok {
		return err
	}
	if err := a.capsules.Delete(ctx, args[0]); err != nil {
		return err
	}
	a.println("Capsule deleted.")
	return nil
}

// confirm asks a yes/no question; only "y" and "yes" count as yes.
func (a *App) confirm(question string) (bool, error) {
	ans, err := a.ask(question + " [y/N]")
	if err != nil {
		return false, err
	}
	switch strings.ToLower(ans) {
	case "y", "yes":
		return true, nil
	}
	a.println("Cancelled.")
	return false, nil
}
