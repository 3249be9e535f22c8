// Command gen writes a small Northwind sample as parquet files into
// testdata/northwind, for trying dbq against the parquet loader:
//
//	go run ./testdata/gen && dbq run best-shipper --data testdata/northwind
package main

import (
	"log"
	"os"
	"path/filepath"

	parquet "github.com/parquet-go/parquet-go"
)

type Shipper struct {
	ShipperID   int64  `parquet:"shipperID"`
	CompanyName string `parquet:"companyName"`
	Phone       string `parquet:"phone"`
}

type Order struct {
	OrderID     int64   `parquet:"orderID"`
	CustomerID  string  `parquet:"customerID"`
	EmployeeID  int64   `parquet:"employeeID"`
	OrderDate   string  `parquet:"orderDate"`
	ShippedDate *string `parquet:"shippedDate,optional"`
	ShipVia     int64   `parquet:"shipVia"`
	Freight     float64 `parquet:"freight"`
	ShipCountry string  `parquet:"shipCountry"`
}

type OrderDetail struct {
	OrderID   int64   `parquet:"orderID"`
	ProductID int64   `parquet:"productID"`
	UnitPrice float64 `parquet:"unitPrice"`
	Quantity  int64   `parquet:"quantity"`
	Discount  float64 `parquet:"discount"`
}

func date(s string) *string { return &s }

func write[T any](dir, name string, rows []T) {
	f, err := os.Create(filepath.Join(dir, name+".parquet"))
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()

	w := parquet.NewGenericWriter[T](f)
	if _, err := w.Write(rows); err != nil {
		log.Fatal(err)
	}
	if err := w.Close(); err != nil {
		log.Fatal(err)
	}
}

func main() {
	dir := filepath.Join("testdata", "northwind")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Fatal(err)
	}

	write(dir, "shippers", []Shipper{
		{1, "Speedy Express", "(503) 555-9831"},
		{2, "United Package", "(503) 555-3199"},
		{3, "Federal Shipping", "(503) 555-9931"},
	})

	write(dir, "orders", []Order{
		{10248, "VINET", 5, "1996-07-04 00:00:00.000", date("1996-07-16 00:00:00.000"), 3, 32.38, "France"},
		{10249, "TOMSP", 6, "1996-07-05 00:00:00.000", date("1996-07-10 00:00:00.000"), 1, 11.61, "Germany"},
		{10250, "HANAR", 4, "1996-07-08 00:00:00.000", date("1996-07-12 00:00:00.000"), 2, 65.83, "Brazil"},
		{10251, "VICTE", 3, "1996-07-08 00:00:00.000", date("1996-07-15 00:00:00.000"), 1, 41.34, "France"},
		{10252, "SUPRD", 4, "1996-07-09 00:00:00.000", date("1996-07-11 00:00:00.000"), 2, 51.30, "Belgium"},
		{10253, "HANAR", 3, "1996-07-10 00:00:00.000", date("1996-07-16 00:00:00.000"), 2, 58.17, "Brazil"},
		{10254, "CHOPS", 5, "1996-07-11 00:00:00.000", nil, 2, 22.98, "Switzerland"},
	})

	write(dir, "order_details", []OrderDetail{
		{10248, 11, 14.0, 12, 0},
		{10248, 42, 9.8, 10, 0},
		{10248, 72, 34.8, 5, 0},
		{10249, 14, 18.6, 9, 0},
		{10249, 51, 42.4, 40, 0},
		{10250, 41, 7.7, 10, 0},
		{10250, 51, 42.4, 35, 0.15},
		{10250, 65, 16.8, 15, 0.15},
		{10251, 22, 16.8, 6, 0.05},
		{10251, 57, 15.6, 15, 0.05},
		{10252, 20, 64.8, 40, 0.05},
		{10253, 31, 10.0, 20, 0},
		{10254, 24, 3.6, 15, 0.15},
	})
}
