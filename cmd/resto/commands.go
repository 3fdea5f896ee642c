package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/go-faster/errors"

	appkg "github.com/xenking/resto-client/internal/app"
	"github.com/xenking/resto-client/internal/domain/analytics"
	"github.com/xenking/resto-client/internal/domain/auth"
	"github.com/xenking/resto-client/internal/domain/cart"
	"github.com/xenking/resto-client/internal/domain/order"
	"github.com/xenking/resto-client/internal/domain/restaurant"
)

type command func(ctx context.Context, c *appkg.Client, args []string) error

var commands = map[string]command{
	"login":        login,
	"register":     register,
	"google":       googleLogin,
	"logout":       logout,
	"whoami":       whoami,
	"restaurants":  restaurants,
	"select":       selectRestaurant,
	"menu":         menu,
	"add":          addItem,
	"remove":       removeItem,
	"qty":          setQuantity,
	"cart":         showCart,
	"checkout":     checkout,
	"update":       updateOrder,
	"cancel":       cancelOrder,
	"complete":     completeOrder,
	"admin-login":  adminLogin,
	"admin-logout": adminLogout,
	"dashboard":    dashboard,
	"doctor":       doctor,
}

var out io.Writer = os.Stdout

func newFlags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	return fs
}

func table() *tabwriter.Writer {
	return tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
}

func login(ctx context.Context, c *appkg.Client, args []string) error {
	fs := newFlags("login")
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	u, err := c.Auth.Login(ctx, *email, *password)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Signed in as %s\n", displayName(u.Name, u.Email))
	return nil
}

func register(ctx context.Context, c *appkg.Client, args []string) error {
	fs := newFlags("register")
	var r auth.RegisterRequest
	fs.StringVar(&r.Name, "name", "", "full name")
	fs.StringVar(&r.Email, "email", "", "account email")
	fs.StringVar(&r.Password, "password", "", "account password")
	fs.StringVar(&r.Phone, "phone", "", "phone number")
	if err := fs.Parse(args); err != nil {
		return err
	}
	u, err := c.Auth.Register(ctx, r)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Welcome, %s\n", displayName(u.Name, u.Email))
	return nil
}

func googleLogin(ctx context.Context, c *appkg.Client, args []string) error {
	fs := newFlags("google")
	credential := fs.String("credential", "", "Google ID token")
	if err := fs.Parse(args); err != nil {
		return err
	}
	u, err := c.Auth.GoogleLogin(ctx, *credential)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Signed in as %s\n", displayName(u.Name, u.Email))
	return nil
}

func logout(ctx context.Context, c *appkg.Client, _ []string) error {
	if err := c.Auth.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(out, "Signed out")
	return nil
}

func whoami(ctx context.Context, c *appkg.Client, _ []string) error {
	if _, err := c.Auth.ValidateSession(ctx); err != nil {
		return err
	}
	if u := c.Auth.User(); u != nil {
		fmt.Fprintf(out, "user:  %s (%s)\n", displayName(u.Name, u.Email), u.ID)
	} else {
		fmt.Fprintln(out, "user:  not signed in")
	}
	if s := c.Auth.AdminSession(); s != nil && s.Verification != nil {
		fmt.Fprintf(out, "admin: %s, restaurant %s (%s)\n",
			displayName(s.User.Name, s.User.Email), s.Verification.RestaurantID, s.Verification.Role)
	}
	return nil
}

func restaurants(ctx context.Context, c *appkg.Client, _ []string) error {
	if err := c.Auth.RequireUser(); err != nil {
		return err
	}
	rs, err := c.Restaurants.List(ctx)
	if err != nil {
		return err
	}
	w := table()
	fmt.Fprintln(w, "ID\tNAME\tCUISINE\tOPEN")
	for _, r := range rs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%t\n", r.ID, r.Name, r.Cuisine, r.IsOpen)
	}
	return w.Flush()
}

func selectRestaurant(ctx context.Context, c *appkg.Client, args []string) error {
	if len(args) != 1 {
		return errors.New("restaurant id required")
	}
	rs, err := c.Restaurants.List(ctx)
	if err != nil {
		return err
	}
	for _, r := range rs {
		if r.ID == args[0] {
			if err := c.Restaurants.Select(ctx, r); err != nil {
				return err
			}
			fmt.Fprintf(out, "Ordering from %s\n", r.Name)
			return nil
		}
	}
	return errors.Errorf("restaurant %q not found", args[0])
}

func menu(ctx context.Context, c *appkg.Client, args []string) error {
	id, err := restaurantArg(ctx, c, args)
	if err != nil {
		return err
	}
	items, err := c.Restaurants.Items(ctx, id)
	if err != nil {
		return err
	}
	w := table()
	fmt.Fprintln(w, "ID\tNAME\tPRICE\tADDONS")
	for _, it := range items {
		addons := make([]string, 0, len(it.Addons))
		for _, a := range it.Addons {
			addons = append(addons, a.Name+" +"+a.Price.StringFixed(2))
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", it.ID, it.Name, it.Price.StringFixed(2), strings.Join(addons, ", "))
	}
	return w.Flush()
}

func restaurantArg(ctx context.Context, c *appkg.Client, args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	r, err := c.Restaurants.Selected(ctx)
	if err != nil {
		return "", err
	}
	return r.ID, nil
}

type multiFlag []string

func (m *multiFlag) String() string     { return strings.Join(*m, ",") }
func (m *multiFlag) Set(v string) error { *m = append(*m, v); return nil }

func addItem(ctx context.Context, c *appkg.Client, args []string) error {
	fs := newFlags("add")
	note := fs.String("note", "", "special instructions")
	var addons multiFlag
	fs.Var(&addons, "addon", "addon name, repeatable")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("item id required")
	}

	r, err := c.Restaurants.Selected(ctx)
	if err != nil {
		return err
	}
	items, err := c.Restaurants.Items(ctx, r.ID)
	if err != nil {
		return err
	}
	mi, ok := findItem(items, fs.Arg(0))
	if !ok {
		return errors.Errorf("item %q not on the menu of %s", fs.Arg(0), r.Name)
	}
	selected := make([]restaurant.Addon, 0, len(addons))
	for _, name := range addons {
		a, ok := findAddon(mi.Addons, name)
		if !ok {
			return errors.Errorf("addon %q not offered for %s", name, mi.Name)
		}
		selected = append(selected, a)
	}

	if err := c.Cart.Add(ctx, cart.FromMenuItem(mi, *note, selected...)); err != nil {
		return err
	}
	l, _ := c.Cart.Get(mi.ID)
	fmt.Fprintf(out, "%s x%d in cart\n", mi.Name, l.Quantity)
	return nil
}

func findItem(items []restaurant.MenuItem, id string) (restaurant.MenuItem, bool) {
	for _, it := range items {
		if it.ID == id {
			return it, true
		}
	}
	return restaurant.MenuItem{}, false
}

func findAddon(addons []restaurant.Addon, name string) (restaurant.Addon, bool) {
	for _, a := range addons {
		if strings.EqualFold(a.Name, name) {
			return a, true
		}
	}
	return restaurant.Addon{}, false
}

func removeItem(ctx context.Context, c *appkg.Client, args []string) error {
	if len(args) != 1 {
		return errors.New("item id required")
	}
	if err := c.Cart.Remove(ctx, args[0]); err != nil {
		return err
	}
	return showCart(ctx, c, nil)
}

func setQuantity(ctx context.Context, c *appkg.Client, args []string) error {
	if len(args) != 2 {
		return errors.New("usage: qty ITEM N")
	}
	n, err := strconv.Atoi(args[1])
	if err != nil {
		return errors.Wrap(err, "quantity")
	}
	if err := c.Cart.UpdateQuantity(ctx, args[0], n); err != nil {
		return err
	}
	return showCart(ctx, c, nil)
}

func showCart(_ context.Context, c *appkg.Client, _ []string) error {
	if c.Cart.IsEmpty() {
		fmt.Fprintln(out, "Cart is empty")
		return nil
	}
	w := table()
	fmt.Fprintln(w, "ITEM\tNAME\tQTY\tSUBTOTAL\tNOTE")
	for _, l := range c.Cart.Lines() {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
			l.ItemID, l.Name, l.Quantity, l.Subtotal().StringFixed(2), l.SpecialInstructions)
	}
	fmt.Fprintf(w, "\t\t%d\t%s\t\n", c.Cart.Count(), c.Cart.Total().StringFixed(2))
	return w.Flush()
}

func checkout(ctx context.Context, c *appkg.Client, args []string) error {
	fs := newFlags("checkout")
	var d order.Details
	fs.StringVar(&d.PaymentMethod, "payment", "cash", "payment method")
	fs.StringVar(&d.DeliveryMethod, "delivery", "pickup", "delivery method")
	fs.StringVar(&d.Address, "address", "", "delivery address")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := c.Auth.RequireUser(); err != nil {
		return err
	}
	total := c.Cart.Total()
	o, err := c.Orders.Checkout(ctx, d)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Order %s placed, total %s\n", o.ID, total.StringFixed(2))
	return nil
}

func updateOrder(ctx context.Context, c *appkg.Client, _ []string) error {
	o, err := c.Orders.Update(ctx, c.Cart.Lines())
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Order %s updated\n", o.ID)
	return nil
}

func cancelOrder(ctx context.Context, c *appkg.Client, _ []string) error {
	if err := c.Orders.Cancel(ctx); err != nil {
		return err
	}
	fmt.Fprintln(out, "Order cancelled")
	return nil
}

func completeOrder(ctx context.Context, c *appkg.Client, _ []string) error {
	if err := c.Orders.Complete(ctx); err != nil {
		return err
	}
	fmt.Fprintln(out, "Enjoy your meal")
	return nil
}

func adminLogin(ctx context.Context, c *appkg.Client, args []string) error {
	fs := newFlags("admin-login")
	email := fs.String("email", "", "admin email")
	password := fs.String("password", "", "admin password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	s, err := c.Auth.AdminLogin(ctx, *email, *password)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Admin of restaurant %s\n", s.Verification.RestaurantID)
	return nil
}

func adminLogout(ctx context.Context, c *appkg.Client, _ []string) error {
	if err := c.Auth.AdminLogout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(out, "Admin signed out")
	return nil
}

func dashboard(ctx context.Context, c *appkg.Client, args []string) error {
	fs := newFlags("dashboard")
	days := fs.Int("days", 7, "number of days up to today")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *days < 1 {
		return errors.New("days must be positive")
	}
	if err := c.Auth.RequireAdmin(); err != nil {
		return err
	}

	d, err := c.Analytics.Dashboard(ctx, analytics.LastDays(time.Now(), *days))
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Revenue %s to %s: %s\n",
		d.Range.From.Format(analytics.DateLayout), d.Range.To.Format(analytics.DateLayout), d.TotalRevenue.StringFixed(2))
	fmt.Fprintf(out, "Orders: %d total, %d pending, %d completed, %d cancelled, avg %s\n\n",
		d.Stats.Total, d.Stats.Pending, d.Stats.Completed, d.Stats.Cancelled, d.Stats.AverageValue.StringFixed(2))

	w := table()
	fmt.Fprintln(w, "DATE\tORDERS\tREVENUE")
	for _, p := range d.Revenue {
		fmt.Fprintf(w, "%s\t%d\t%s\n", p.Date, p.Orders, p.Revenue.StringFixed(2))
	}
	fmt.Fprintln(w, "\t\t")
	fmt.Fprintln(w, "TOP ITEM\tQTY\tREVENUE")
	for _, it := range d.TopItems {
		fmt.Fprintf(w, "%s\t%d\t%s\n", displayName(it.Name, it.ItemID), it.Quantity, it.Revenue.StringFixed(2))
	}
	return w.Flush()
}

func doctor(ctx context.Context, c *appkg.Client, _ []string) error {
	report := c.Health.Run(ctx)
	w := table()
	for _, r := range report {
		status := "ok"
		if r.Err != nil {
			status = r.Err.Error()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", r.Name, r.Duration.Round(time.Millisecond), status)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if !report.Healthy() {
		return errors.New("unhealthy")
	}
	return nil
}

func displayName(name, fallback string) string {
	if name != "" {
		return name
	}
	return fallback
}
