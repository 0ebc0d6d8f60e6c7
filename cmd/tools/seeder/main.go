package main

import (
	"context"
	"log"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"

	appdb "github.com/noah-isme/toko-pricing/internal/db"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	if err := appdb.Migrate(dbURL); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	ctx := context.Background()
	conn, err := pgx.Connect(ctx, dbURL)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer func() { _ = conn.Close(ctx) }()

	seedProducts(ctx, conn)
	seedFees(ctx, conn)
	seedVouchers(ctx, conn)
	seedEntitlements(ctx, conn)

	log.Println("Seeding completed successfully!")
}

func seedProducts(ctx context.Context, conn *pgx.Conn) {
	log.Println("Seeding products...")
	products := []struct {
		ID    int64
		Name  string
		Price string
	}{
		{1, "Running Shoes", "100.00"},
		{2, "Trail Backpack", "75.50"},
		{3, "Sports Watch", "249.99"},
		{4, "Water Bottle", "12.00"},
		{5, "Cycling Helmet", "89.90"},
	}
	for _, p := range products {
		_, err := conn.Exec(ctx, `INSERT INTO products (id, name, base_price)
VALUES ($1, $2, $3)
ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, base_price = EXCLUDED.base_price`,
			p.ID, p.Name, p.Price)
		if err != nil {
			log.Fatalf("Failed to seed product %q: %v", p.Name, err)
		}
	}
	_, err := conn.Exec(ctx, `SELECT setval('products_id_seq', (SELECT MAX(id) FROM products))`)
	if err != nil {
		log.Fatalf("Failed to bump products sequence: %v", err)
	}

	discounts := []struct {
		ProductID int64
		Kind      string
		Value     string
	}{
		{1, "percentage", "10.00"},
		{3, "fixed", "25.00"},
	}
	for _, d := range discounts {
		_, err := conn.Exec(ctx, `INSERT INTO discounts (product_id, kind, value)
VALUES ($1, $2, $3)
ON CONFLICT (product_id) DO UPDATE SET kind = EXCLUDED.kind, value = EXCLUDED.value`,
			d.ProductID, d.Kind, d.Value)
		if err != nil {
			log.Fatalf("Failed to seed discount for product %d: %v", d.ProductID, err)
		}
	}
}

func seedFees(ctx context.Context, conn *pgx.Conn) {
	log.Println("Seeding fees...")
	fees := []struct {
		ID       int64
		Name     string
		Category string
		Kind     string
		Value    string
	}{
		{1, "Standard Shipping", "shipping", "percentage", "10.00"},
		{2, "Express Shipping", "shipping", "fixed", "15.00"},
		{3, "Card Processing", "payment", "percentage", "2.50"},
	}
	for _, f := range fees {
		_, err := conn.Exec(ctx, `INSERT INTO fees (id, name, category, kind, value)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, category = EXCLUDED.category, kind = EXCLUDED.kind, value = EXCLUDED.value`,
			f.ID, f.Name, f.Category, f.Kind, f.Value)
		if err != nil {
			log.Fatalf("Failed to seed fee %q: %v", f.Name, err)
		}
	}
	_, err := conn.Exec(ctx, `SELECT setval('fees_id_seq', (SELECT MAX(id) FROM fees))`)
	if err != nil {
		log.Fatalf("Failed to bump fees sequence: %v", err)
	}

	links := []struct{ ProductID, FeeID int64 }{
		{1, 1}, {1, 3},
		{2, 1},
		{3, 2}, {3, 3},
		{5, 1},
	}
	for _, l := range links {
		_, err := conn.Exec(ctx, `INSERT INTO product_fees (product_id, fee_id)
VALUES ($1, $2) ON CONFLICT DO NOTHING`, l.ProductID, l.FeeID)
		if err != nil {
			log.Fatalf("Failed to link fee %d to product %d: %v", l.FeeID, l.ProductID, err)
		}
	}
}

func seedVouchers(ctx context.Context, conn *pgx.Conn) {
	log.Println("Seeding vouchers...")
	vouchers := []struct {
		ID    int64
		Code  string
		Kind  string
		Value string
	}{
		{1, "SAVE5", "fixed", "5.00"},
		{2, "TENOFF", "percentage", "10.00"},
		{3, "FREESHIP", "fixed", "15.00"},
		{4, "CARDBACK", "percentage", "50.00"},
	}
	for _, v := range vouchers {
		_, err := conn.Exec(ctx, `INSERT INTO vouchers (id, code, kind, value)
VALUES ($1, $2, $3, $4)
ON CONFLICT (id) DO UPDATE SET code = EXCLUDED.code, kind = EXCLUDED.kind, value = EXCLUDED.value`,
			v.ID, v.Code, v.Kind, v.Value)
		if err != nil {
			log.Fatalf("Failed to seed voucher %q: %v", v.Code, err)
		}
	}
	_, err := conn.Exec(ctx, `SELECT setval('vouchers_id_seq', (SELECT MAX(id) FROM vouchers))`)
	if err != nil {
		log.Fatalf("Failed to bump vouchers sequence: %v", err)
	}

	productLinks := []struct{ ProductID, VoucherID int64 }{
		{1, 1}, {1, 2},
		{2, 1},
		{3, 2},
	}
	for _, l := range productLinks {
		_, err := conn.Exec(ctx, `INSERT INTO product_vouchers (product_id, voucher_id)
VALUES ($1, $2) ON CONFLICT DO NOTHING`, l.ProductID, l.VoucherID)
		if err != nil {
			log.Fatalf("Failed to link voucher %d to product %d: %v", l.VoucherID, l.ProductID, err)
		}
	}
	for _, id := range []int64{3} {
		if _, err := conn.Exec(ctx, `INSERT INTO shipping_vouchers (voucher_id) VALUES ($1) ON CONFLICT DO NOTHING`, id); err != nil {
			log.Fatalf("Failed to register shipping voucher %d: %v", id, err)
		}
	}
	for _, id := range []int64{4} {
		if _, err := conn.Exec(ctx, `INSERT INTO payment_vouchers (voucher_id) VALUES ($1) ON CONFLICT DO NOTHING`, id); err != nil {
			log.Fatalf("Failed to register payment voucher %d: %v", id, err)
		}
	}
}

func seedEntitlements(ctx context.Context, conn *pgx.Conn) {
	log.Println("Seeding entitlements...")
	entitlements := []struct {
		CustomerID int64
		VoucherID  int64
		Remaining  int
	}{
		{42, 1, 3},
		{42, 2, 1},
		{42, 3, 2},
		{43, 1, 1},
		{43, 4, 5},
	}
	for _, e := range entitlements {
		_, err := conn.Exec(ctx, `INSERT INTO entitlements (customer_id, voucher_id, remaining_uses)
VALUES ($1, $2, $3)
ON CONFLICT (customer_id, voucher_id) DO UPDATE SET remaining_uses = EXCLUDED.remaining_uses`,
			e.CustomerID, e.VoucherID, e.Remaining)
		if err != nil {
			log.Fatalf("Failed to seed entitlement (%d,%d): %v", e.CustomerID, e.VoucherID, err)
		}
	}
}
