package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"go.uber.org/zap"

	"github.com/safar/monmiam/internal/admin"
	"github.com/safar/monmiam/internal/client"
	"github.com/safar/monmiam/internal/models"
	"github.com/safar/monmiam/internal/ui"
)

func (a *app) newBoard(filter models.OrderStatus) *admin.Board {
	return admin.NewBoard(a.api, a.term,
		admin.WithInterval(a.cfg.Client.PollInterval),
		admin.WithStatusFilter(filter),
		admin.WithBoardLogger(a.logger.Named("board")))
}

// board prints the order list on every refresh until interrupted. Pushed
// events trigger an immediate refresh when the server offers the stream.
func (a *app) board(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("board", flag.ContinueOnError)
	status := fs.String("statut", "", "filtrer par statut")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	filter := models.OrderStatus(*status)
	if filter != "" && !filter.Valid() {
		a.term.Alert(fmt.Sprintf("Statut inconnu : %s", filter))
		return errUsage
	}

	b := a.newBoard(filter)
	b.OnChange(printOrders)
	a.term.Navigate(ui.RouteAdminOrders)

	go func() {
		err := b.Watch(ctx, a.api.StreamOrderEvents)
		switch {
		case err == nil, errors.Is(err, context.Canceled):
		case client.IsStreamUnavailable(err):
			a.logger.Info("event stream unavailable, polling only")
		default:
			a.logger.Warn("event stream stopped", zap.Error(err))
		}
	}()

	return b.Run(ctx)
}

func printOrders(orders []models.Order) {
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "\nID\tNUMÉRO\tCLIENT\tSERVICE\tSTATUT\tTOTAL\t")
	for _, o := range orders {
		name := ""
		if o.Customer != nil {
			name = o.Customer.Name
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s FCFA\t\n",
			o.ID, o.OrderNumber, name, o.ServiceType, o.Status.Label(), o.TotalAmount.StringFixed(0))
	}
	tw.Flush()
}

func (a *app) transition(ctx context.Context, cmd string, args []string) error {
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	id := fs.Int64("id", 0, "identifiant de la commande")
	if err := fs.Parse(args); err != nil || *id <= 0 {
		return errUsage
	}

	b := a.newBoard("")
	if err := b.Refresh(ctx); err != nil {
		a.term.Error(client.UserMessage(err))
		return err
	}

	var err error
	if cmd == "cancel" {
		if !a.term.Confirm(fmt.Sprintf("Annuler la commande #%d ?", *id)) {
			return nil
		}
		err = b.Cancel(ctx, *id)
	} else {
		err = b.Advance(ctx, *id)
	}

	switch {
	case errors.Is(err, admin.ErrUnknownOrder):
		a.term.Alert(fmt.Sprintf("La commande #%d n'est pas sur le tableau.", *id))
	case errors.Is(err, admin.ErrNoNextStatus):
		a.term.Alert("Cette commande est déjà terminée.")
	case errors.Is(err, admin.ErrCannotCancel):
		a.term.Alert("Seule une commande en attente peut être annulée.")
	}
	return err
}

func (a *app) statusHistory(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("historique", flag.ContinueOnError)
	id := fs.Int64("id", 0, "identifiant de la commande")
	if err := fs.Parse(args); err != nil || *id <= 0 {
		return errUsage
	}

	entries, err := a.api.OrderHistory(ctx, *id)
	if err != nil {
		a.term.Error(client.UserMessage(err))
		return err
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tSTATUT\tPAR\t")
	for _, e := range entries {
		by := "-"
		if e.ChangedBy != nil {
			by = fmt.Sprintf("#%d", *e.ChangedBy)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t\n", e.ChangedAt.Local().Format("02/01 15:04"), e.Status.Label(), by)
	}
	return tw.Flush()
}

func (a *app) admin(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return errUsage
	}
	kind, action := args[0], args[1]

	fs := flag.NewFlagSet("admin", flag.ContinueOnError)
	id := fs.Int64("id", 0, "identifiant")
	field := fs.String("field", "", "champ à basculer")
	if err := fs.Parse(args[2:]); err != nil {
		return errUsage
	}

	switch kind {
	case "articles":
		return runResource[models.Article](ctx, a, a.api.Articles(), "Article", action, *id, *field)
	case string(models.KindEmployees):
		return runResource[models.Employee](ctx, a, a.api.Employees(), "Employé", action, *id, *field)
	case string(models.KindPromotions):
		return runResource[models.Promotion](ctx, a, a.api.Promotions(), "Promotion", action, *id, *field)
	case string(models.KindEvents):
		return runResource[models.Event](ctx, a, a.api.Events(), "Événement", action, *id, *field)
	case string(models.KindComplaints):
		return runResource[models.Complaint](ctx, a, a.api.Complaints(), "Réclamation", action, *id, *field)
	case string(models.KindSettings):
		return runResource[models.Setting](ctx, a, a.api.Settings(), "Paramètre", action, *id, *field)
	default:
		return errUsage
	}
}

func runResource[T admin.Entity](ctx context.Context, a *app, api admin.ResourceAPI[T], label, action string, id int64, field string) error {
	view := admin.NewResourceView[T](api, label, a.term, a.term, a.logger.Named("admin"))

	switch action {
	case "list":
		items, err := view.List(ctx)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(items)
	case "delete":
		if id <= 0 {
			return errUsage
		}
		_, err := view.Delete(ctx, id)
		return err
	case "toggle":
		if id <= 0 || field == "" {
			return errUsage
		}
		_, err := view.Toggle(ctx, id, field)
		return err
	default:
		return errUsage
	}
}
