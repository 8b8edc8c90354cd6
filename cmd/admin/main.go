package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/kevin07696/slot-billing/internal/adapters/postgres"
	"github.com/kevin07696/slot-billing/internal/config"
	"github.com/kevin07696/slot-billing/internal/domain"
	"github.com/kevin07696/slot-billing/internal/services/billing"
	"github.com/kevin07696/slot-billing/internal/services/pricing"
)

// AdminCLI runs operator tasks directly against the billing database
type AdminCLI struct {
	ctx     context.Context
	prices  *pricing.Service
	queries *billing.QueryService
	actor   domain.Actor
}

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		log.Fatalf("failed to load .env: %v", err)
	}

	var (
		dbURL    = flag.String("db", os.Getenv("DATABASE_URL"), "Database URL")
		action   = flag.String("action", "", "Action to perform: set-price, list-prices, show-payment, show-slots, issue-token")
		slotType = flag.String("slot-type", "", "Slot type for set-price: admin or member")
		price    = flag.String("price", "", "Price per unit for set-price, e.g. 500 or 12.50")
		currency = flag.String("currency", "", "ISO 4217 currency for set-price")
		id       = flag.Int64("id", 0, "Payment record id (show-payment) or company id (show-slots, issue-token)")
		role     = flag.String("role", domain.RoleOperator, "Role for issue-token: operator, admin or member")
		subject  = flag.String("sub", "admin-cli", "Subject for issue-token")
		ttl      = flag.Duration("ttl", time.Hour, "Lifetime for issue-token")
		operator = flag.String("operator", "admin-cli", "Operator id recorded in logs")
	)
	flag.Parse()

	if *action == "" {
		fmt.Println("Usage: admin -action=<action> [options]")
		fmt.Println("Actions:")
		fmt.Println("  set-price    - Create or replace the price of a slot type")
		fmt.Println("  list-prices  - List the pricing catalog")
		fmt.Println("  show-payment - Show a payment record (-id)")
		fmt.Println("  show-slots   - Show a company's slot counters (-id)")
		fmt.Println("  issue-token  - Sign a session token with JWT_SECRET (development only)")
		os.Exit(1)
	}

	if *action == "issue-token" {
		issueToken(*role, *subject, *id, *ttl)
		return
	}

	if *dbURL == "" {
		log.Fatal("a database URL is required: pass -db or set DATABASE_URL")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, *dbURL)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer pool.Close()

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatal("Failed to create logger:", err)
	}
	defer func() { _ = logger.Sync() }()

	db := postgres.NewDBExecutor(pool)
	records := postgres.NewPaymentRecordRepository(db)
	companies := postgres.NewCompanyRepository(db)

	cli := &AdminCLI{
		ctx:     ctx,
		prices:  pricing.NewService(postgres.NewPricingRepository(db), logger),
		queries: billing.NewQueryService(records, companies, logger),
		actor:   domain.Actor{UserID: *operator, Role: domain.RoleOperator},
	}

	switch *action {
	case "set-price":
		cli.setPrice(*slotType, *price, *currency)
	case "list-prices":
		cli.listPrices()
	case "show-payment":
		cli.showPayment(*id)
	case "show-slots":
		cli.showSlots(*id)
	default:
		fmt.Printf("Unknown action: %s\n", *action)
		os.Exit(1)
	}
}

func (cli *AdminCLI) setPrice(slotType, price, currency string) {
	amount, err := decimal.NewFromString(price)
	if err != nil {
		log.Fatalf("Invalid price %q: %v", price, err)
	}

	entry, err := cli.prices.UpsertPrice(cli.ctx, cli.actor, pricing.UpsertPriceRequest{
		SlotType:     slotType,
		Currency:     currency,
		PricePerUnit: amount,
	})
	if err != nil {
		log.Fatalf("Failed to set price: %v", err)
	}

	fmt.Printf("Price updated: %s = %s %s per slot\n", entry.SlotType, entry.PricePerUnit.StringFixed(2), entry.Currency)
}

func (cli *AdminCLI) listPrices() {
	entries, err := cli.prices.ListPrices(cli.ctx)
	if err != nil {
		log.Fatalf("Failed to list prices: %v", err)
	}
	if len(entries) == 0 {
		fmt.Println("No prices configured. Purchases fail with PRICING_NOT_CONFIGURED until one is set.")
		return
	}

	fmt.Printf("%-10s %-15s %-10s %-25s\n", "Slot", "Price", "Currency", "Updated")
	for _, e := range entries {
		fmt.Printf("%-10s %-15s %-10s %-25s\n",
			e.SlotType, e.PricePerUnit.StringFixed(2), e.Currency, e.UpdatedAt.Format(time.RFC3339))
	}
}

func (cli *AdminCLI) showPayment(id int64) {
	rec, err := cli.queries.GetPaymentRecord(cli.ctx, cli.actor, id)
	if err != nil {
		log.Fatalf("Failed to load payment record %d: %v", id, err)
	}
	printJSON(rec)
}

func (cli *AdminCLI) showSlots(companyID int64) {
	slots, err := cli.queries.GetCompanySlots(cli.ctx, cli.actor, companyID)
	if err != nil {
		log.Fatalf("Failed to load company %d: %v", companyID, err)
	}
	printJSON(slots)
}

func issueToken(role, subject string, companyID int64, ttl time.Duration) {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		log.Fatal("JWT_SECRET must be set to issue tokens")
	}

	now := time.Now()
	claims := domain.TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    os.Getenv("JWT_ISSUER"),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Role:      role,
		CompanyID: companyID,
	}
	if aud := os.Getenv("JWT_AUDIENCE"); aud != "" {
		claims.Audience = jwt.ClaimStrings{aud}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		log.Fatalf("Failed to sign token: %v", err)
	}
	fmt.Println(signed)
	fmt.Fprintf(os.Stderr, "role=%s company_id=%s expires=%s\n",
		role, strconv.FormatInt(companyID, 10), now.Add(ttl).Format(time.RFC3339))
}

func printJSON(v interface{}) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Fatalf("Failed to encode output: %v", err)
	}
	fmt.Println(string(out))
}
