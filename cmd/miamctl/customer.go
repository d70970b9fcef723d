package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/safar/monmiam/internal/cart"
	"github.com/safar/monmiam/internal/checkout"
	"github.com/safar/monmiam/internal/client"
	"github.com/safar/monmiam/internal/models"
	"github.com/safar/monmiam/internal/ui"
)

// itemFlag collects repeated -item ID:QTE values.
type itemFlag []itemSpec

type itemSpec struct {
	articleID int64
	quantity  int
}

func (f *itemFlag) String() string {
	parts := make([]string, len(*f))
	for i, it := range *f {
		parts[i] = fmt.Sprintf("%d:%d", it.articleID, it.quantity)
	}
	return strings.Join(parts, ",")
}

func (f *itemFlag) Set(v string) error {
	spec, err := parseItem(v)
	if err != nil {
		return err
	}
	*f = append(*f, spec)
	return nil
}

func parseItem(v string) (itemSpec, error) {
	idPart, qtyPart, found := strings.Cut(v, ":")
	if !found {
		qtyPart = "1"
	}
	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil || id <= 0 {
		return itemSpec{}, fmt.Errorf("invalid article id %q", idPart)
	}
	qty, err := strconv.Atoi(qtyPart)
	if err != nil || qty < 1 {
		return itemSpec{}, fmt.Errorf("invalid quantity %q", qtyPart)
	}
	return itemSpec{articleID: id, quantity: qty}, nil
}

func (a *app) login(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	email := fs.String("email", "", "adresse e-mail")
	password := fs.String("password", "", "mot de passe")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	session, err := a.api.Login(ctx, *email, *password)
	if err != nil {
		a.term.Error(client.UserMessage(err))
		return err
	}
	if session.Customer != nil {
		a.term.Success(fmt.Sprintf("Bienvenue %s (%d points fidélité).", session.Customer.Name, session.Customer.LoyaltyPoints))
	}
	a.term.Navigate(ui.RouteMenu)
	return nil
}

func (a *app) register(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	var reg client.Registration
	fs.StringVar(&reg.Email, "email", "", "adresse e-mail")
	fs.StringVar(&reg.Name, "nom", "", "nom complet")
	fs.StringVar(&reg.Phone, "telephone", "", "téléphone")
	fs.StringVar(&reg.Password, "password", "", "mot de passe (8 caractères minimum)")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	session, err := a.api.Register(ctx, reg)
	if err != nil {
		a.reportFields(err)
		return err
	}
	if session.Customer != nil {
		a.term.Success(fmt.Sprintf("Compte créé pour %s.", session.Customer.Name))
	}
	return nil
}

func (a *app) logout() error {
	if err := a.api.Logout(); err != nil {
		a.term.Error(client.UserMessage(err))
		return err
	}
	a.term.Success("Déconnecté.")
	return nil
}

func (a *app) menu(ctx context.Context) error {
	articles, err := a.api.Menu(ctx)
	if err != nil {
		a.term.Error(client.UserMessage(err))
		return err
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tARTICLE\tPRIX\t")
	for _, art := range articles {
		name := art.Name
		if art.Featured {
			name += " ★"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s FCFA\t\n", art.ID, name, art.Price.StringFixed(0))
	}
	return tw.Flush()
}

func (a *app) order(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("order", flag.ContinueOnError)
	var items itemFlag
	fs.Var(&items, "item", "article ID:QTE, répétable")
	service := fs.String("service", string(models.ServicePickup), "livraison ou emporter")
	payment := fs.String("paiement", string(models.PaymentCash), "especes ou en_ligne")
	arrival := fs.String("heure", defaultArrival(time.Now()), "heure d'arrivée souhaitée (HH:MM), dans 30 minutes par défaut")
	building := fs.String("batiment", "", "bâtiment de livraison")
	phone := fs.String("telephone", "", "téléphone de livraison")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	articles, err := a.api.Menu(ctx)
	if err != nil {
		a.term.Error(client.UserMessage(err))
		return err
	}
	c, err := fillCart(articles, items)
	if err != nil {
		a.term.Alert(err.Error())
		return err
	}

	co := checkout.New(a.api, c, &checkout.History{}, a.term, a.term, checkout.WithLogger(a.logger.Named("checkout")))

	totals := co.Totals(models.ServiceType(*service))
	fmt.Printf("Sous-total %s FCFA, livraison %s FCFA, total %s FCFA\n",
		totals.Subtotal.StringFixed(0), totals.ServiceFee.StringFixed(0), totals.Total.StringFixed(0))

	_, err = co.Submit(ctx, checkout.Draft{
		ServiceType:      models.ServiceType(*service),
		ArrivalTime:      *arrival,
		PaymentMethod:    models.PaymentMethod(*payment),
		DeliveryBuilding: *building,
		DeliveryPhone:    *phone,
	})
	return err
}

// defaultArrival is the arrival time used when -heure is omitted.
func defaultArrival(now time.Time) string {
	return now.Add(30 * time.Minute).Format("15:04")
}

// fillCart builds a cart from the -item flags, resolving each id against
// the menu.
func fillCart(menu []models.Article, items []itemSpec) (*cart.Cart, error) {
	byID := make(map[int64]models.Article, len(menu))
	for _, art := range menu {
		byID[art.ID] = art
	}

	c := cart.New()
	for _, it := range items {
		art, ok := byID[it.articleID]
		if !ok {
			return nil, fmt.Errorf("l'article %d n'est pas au menu", it.articleID)
		}
		line := cart.LineFromArticle(art)
		line.Quantity = it.quantity
		c.AddLine(line)
	}
	return c, nil
}

func (a *app) history(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	limit := fs.Int("limit", 10, "nombre de commandes")
	cursor := fs.String("cursor", "", "curseur de la page suivante")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	page, err := a.api.MyOrders(ctx, *cursor, *limit)
	if err != nil {
		a.term.Error(client.UserMessage(err))
		return err
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNUMÉRO\tSTATUT\tTOTAL\tPOINTS\t")
	for _, o := range page.Items {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s FCFA\t%d\t\n",
			o.ID, o.OrderNumber, o.Status.Label(), o.TotalAmount.StringFixed(0), o.LoyaltyPoints)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if page.NextCursor != "" {
		fmt.Printf("suite : miamctl history -cursor %s\n", page.NextCursor)
	}
	return nil
}

func (a *app) receipt(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("receipt", flag.ContinueOnError)
	id := fs.Int64("id", 0, "identifiant de la commande")
	out := fs.String("o", "", "fichier de sortie")
	if err := fs.Parse(args); err != nil || *id <= 0 {
		return errUsage
	}

	pdf, err := a.api.Receipt(ctx, *id)
	if err != nil {
		a.term.Error(client.UserMessage(err))
		return err
	}
	path := *out
	if path == "" {
		path = fmt.Sprintf("recu-%d.pdf", *id)
	}
	if err := os.WriteFile(path, pdf, 0o644); err != nil {
		a.term.Error(fmt.Sprintf("Impossible d'écrire %s.", path))
		return err
	}
	a.term.Success(fmt.Sprintf("Reçu enregistré dans %s.", path))
	return nil
}

// reportFields prints the server message and, on a 422, each field error.
func (a *app) reportFields(err error) {
	a.term.Error(client.UserMessage(err))
	for _, msg := range client.FieldMessages(err) {
		fmt.Fprintf(os.Stderr, "  %s\n", msg)
	}
}
