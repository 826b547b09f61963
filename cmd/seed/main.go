package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/hackgods/tarot-booking/internal/checkout"
	"github.com/hackgods/tarot-booking/internal/config"
	"github.com/hackgods/tarot-booking/internal/db"
	"github.com/hackgods/tarot-booking/internal/scheduling"
	"github.com/hackgods/tarot-booking/internal/timeutil"
)

// default daily availability
var defaultWindows = []struct {
	start, end int
	t          scheduling.WindowType
}{
	{start: 10*60 + 30, end: 18 * 60, t: scheduling.WindowRegular},
	{start: 20 * 60, end: 22 * 60, t: scheduling.WindowEmergency},
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	days := flag.Int("days", 14, "number of days to open, starting today")
	bookings := flag.Int("bookings", 20, "number of sample bookings to place")
	blocks := flag.Int("blocks", 5, "number of manual blocks to place")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if cfg.StoreBackend != config.BackendPostgres {
		log.Fatal("seed requires STORE_BACKEND=postgres")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, db.PoolOptions{ApplicationName: "tarot-seed"})
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	svc := scheduling.NewService(
		scheduling.NewPgRepository(pool),
		scheduling.NewMemoryProposalStore(cfg.ProposalTTL),
		scheduling.NewLocalLocker(),
	)
	catalogue, err := checkout.NewCatalogue(cfg.EmergencySurchargeRate, cfg.Currency)
	if err != nil {
		log.Fatalf("catalogue: %v", err)
	}

	today := timeutil.Today(cfg.BusinessTimezone)
	if err := seedWindows(ctx, svc, today, *days); err != nil {
		log.Fatalf("seed windows: %v", err)
	}
	if err := seedBlocks(ctx, svc, today, *days, *blocks); err != nil {
		log.Fatalf("seed blocks: %v", err)
	}
	if err := seedBookings(ctx, svc, catalogue, today, *days, *bookings); err != nil {
		log.Fatalf("seed bookings: %v", err)
	}

	log.Println("seed complete")
}

func seedWindows(ctx context.Context, svc *scheduling.Service, from time.Time, days int) error {
	log.Printf("opening default windows for %d days", days)

	accepted, skipped := 0, 0
	for i := 0; i < days; i++ {
		date := timeutil.AddDays(from, i)
		for _, w := range defaultWindows {
			p, err := svc.ProposeWindow(ctx, date, w.start, w.end, w.t)
			if err != nil {
				return err
			}
			if p.State == scheduling.ProposalAccepted {
				accepted++
				continue
			}
			// Already open on a previous run; leave the admin's windows alone.
			if _, err := svc.DiscardProposal(ctx, p.ID); err != nil {
				return err
			}
			skipped++
		}
	}

	log.Printf("windows: %d created, %d already present", accepted, skipped)
	return nil
}

func seedBlocks(ctx context.Context, svc *scheduling.Service, from time.Time, days, count int) error {
	log.Printf("placing %d manual blocks", count)

	placed := 0
	for i := 0; i < count; i++ {
		date := timeutil.AddDays(from, gofakeit.Number(0, days-1))
		start := gofakeit.Number(21, 34) * 30
		_, err := svc.Book(ctx, scheduling.BookingRequest{
			Date:     date,
			Time:     start,
			Duration: 60,
			Type:     scheduling.WindowRegular,
			Source:   scheduling.SourceManualBlock,
			Label:    gofakeit.Sentence(3),
		})
		if err != nil {
			if isTaken(err) {
				continue
			}
			return err
		}
		placed++
	}

	log.Printf("blocks: %d placed", placed)
	return nil
}

func seedBookings(ctx context.Context, svc *scheduling.Service, catalogue *checkout.Catalogue, from time.Time, days, count int) error {
	log.Printf("placing %d sample bookings", count)

	var live []checkout.Offering
	for _, o := range catalogue.List() {
		if o.Bookable {
			live = append(live, o.Offering)
		}
	}
	if len(live) == 0 {
		return errors.New("catalogue has no bookable services")
	}

	placed := 0
	for i := 0; i < count; i++ {
		offering := live[gofakeit.Number(0, len(live)-1)]
		wt := scheduling.WindowRegular
		w := defaultWindows[0]
		if gofakeit.Number(0, 4) == 0 {
			wt = scheduling.WindowEmergency
			w = defaultWindows[1]
		}
		quote, err := catalogue.Quote(offering.Code, wt)
		if err != nil {
			return err
		}

		minutes := offering.Duration
		steps := (w.end - w.start) / minutes
		start := w.start + gofakeit.Number(0, steps-1)*minutes

		_, err = svc.Book(ctx, scheduling.BookingRequest{
			Date:        timeutil.AddDays(from, gofakeit.Number(0, days-1)),
			Time:        start,
			Duration:    minutes,
			Type:        wt,
			Source:      scheduling.SourceClientBooking,
			ServiceCode: offering.Code,
			Client: scheduling.Client{
				Name:  gofakeit.Name(),
				Email: gofakeit.Email(),
				Phone: gofakeit.Phone(),
			},
			AmountCents: quote.AmountCents,
			Currency:    quote.Currency,
		})
		if err != nil {
			if isTaken(err) {
				continue
			}
			return err
		}
		placed++
	}

	log.Printf("bookings: %d placed", placed)
	return nil
}

func isTaken(err error) bool {
	return errors.Is(err, scheduling.ErrSlotConflict) || errors.Is(err, scheduling.ErrOutsideAvailability)
}
