package engine

import (
	"bytes"
	"errors"
	"log/slog"
	"math"
	"reflect"
	"strings"
	"testing"

	"github.com/trilochan-behera-dev/database-query/ast"
	"github.com/trilochan-behera-dev/database-query/parser"
	"github.com/trilochan-behera-dev/database-query/table"
)

func newTable(name string, cols []string, rows ...[]any) *table.Table {
	t := table.NewTable(name, cols)
	for _, r := range rows {
		vals := make([]table.Value, len(r))
		for i, x := range r {
			vals[i] = table.FromInterface(x)
		}
		t.AddRow(vals)
	}
	return t
}

func testStore() *table.Store {
	shippers := newTable("shippers", []string{"shipperID", "companyName", "phone"},
		[]any{1, "Speedy Express", "(503) 555-9831"},
		[]any{2, "United Package", "(503) 555-3199"},
		[]any{3, "Federal Shipping", "(503) 555-9931"},
	)
	orders := newTable("orders", []string{"orderID", "customerID", "employeeID", "orderDate", "shipVia", "freight"},
		[]any{10248, "VINET", 5, "1996-07-04 00:00:00.000", 3, 32.38},
		[]any{10249, "TOMSP", 6, "1996-07-05 00:00:00.000", 1, 11.61},
		[]any{10250, "HANAR", 4, "1996-07-08 00:00:00.000", 2, 65.83},
		[]any{10251, "VICTE", 3, "1996-08-08 00:00:00.000", 1, 41.34},
		[]any{10252, "SUPRD", 4, "1996-08-09 00:00:00.000", 2, 51.30},
		[]any{10253, "HANAR", 3, "1996-08-10 00:00:00.000", 2, 58.17},
		[]any{10254, "CHOPS", 5, "1996-08-11 00:00:00.000", nil, 22.98},
	)
	details := newTable("order_details", []string{"orderID", "productID", "unitPrice", "quantity"},
		[]any{10248, 11, 14.0, 12},
		[]any{10248, 42, 9.8, 10},
		[]any{10248, 72, 34.8, 5},
		[]any{10249, 14, 18.6, 9},
		[]any{10250, 41, 7.7, 10},
	)
	products := newTable("products", []string{"productID", "productName", "unitsInStock", "reorderLevel"},
		[]any{1, "Chai", 39, 10},
		[]any{2, "Chang", 17, 25},
		[]any{3, "Aniseed Syrup", 13, 25},
		[]any{5, "Chef Anton's Gumbo Mix", 0, 0},
		[]any{11, "Queso Cabrales", 22, 30},
	)
	return table.NewStore(shippers, orders, details, products)
}

func runPipeline(t *testing.T, src table.Source, text string) []*table.Doc {
	t.Helper()
	p, err := parser.Parse(text)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	docs, err := Execute(p, src)
	if err != nil {
		t.Fatalf("exec error: %v", err)
	}
	return docs
}

func runError(t *testing.T, src table.Source, text string) error {
	t.Helper()
	p, err := parser.Parse(text)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	docs, err := Execute(p, src)
	if err == nil {
		t.Fatalf("expected error, got %d docs", len(docs))
	}
	if docs != nil {
		t.Errorf("expected no documents on error, got %d", len(docs))
	}
	return err
}

func field(d *table.Doc, path string) table.Value {
	v, _ := d.Path(path)
	return v
}

func orderIDs(docs []*table.Doc) []int64 {
	ids := make([]int64, len(docs))
	for i, d := range docs {
		ids[i] = field(d, "orderID").Int
	}
	return ids
}

const lookupShippers = `{ $lookup: { from: "shippers", localField: "shipVia", foreignField: "shipperID", as: "shipper" } }`

func TestLookupOuterJoin(t *testing.T) {
	docs := runPipeline(t, testStore(), `db.orders.aggregate([`+lookupShippers+`])`)
	if len(docs) != 7 {
		t.Fatalf("expected every order once, got %d", len(docs))
	}
	want := []int64{10248, 10249, 10250, 10251, 10252, 10253, 10254}
	if got := orderIDs(docs); !reflect.DeepEqual(got, want) {
		t.Errorf("expected input order %v, got %v", want, got)
	}
	for _, d := range docs {
		v := field(d, "shipper")
		if v.Type != table.TypeArray {
			t.Fatalf("expected array field, got %s", v.Type)
		}
		if via := field(d, "shipVia"); via.IsNull() {
			if len(v.Arr) != 0 {
				t.Errorf("order %d: expected no match for null shipVia, got %d", field(d, "orderID").Int, len(v.Arr))
			}
		} else if len(v.Arr) != 1 || field(d, "shipper.shipperID").Arr[0].Int != via.Int {
			t.Errorf("order %d: unexpected match %s", field(d, "orderID").Int, v.AsString())
		}
	}
	if name := field(docs[2], "shipper.companyName").Arr[0].Str; name != "United Package" {
		t.Errorf("expected United Package, got %q", name)
	}
}

func TestLookupKeyEquality(t *testing.T) {
	a := newTable("a", []string{"k"},
		[]any{1},
		[]any{1.0},
		[]any{nil},
		[]any{[]any{1, 2}},
	)
	a.Append(table.DocOf("other", 5))
	b := newTable("b", []string{"k", "name"},
		[]any{2, "two"},
		[]any{1, "one"},
		[]any{nil, "none"},
	)
	docs := runPipeline(t, table.NewStore(a, b),
		`db.a.aggregate([{ $lookup: { from: "b", localField: "k", foreignField: "k", as: "m" } }])`)

	want := [][]string{{"one"}, {"one"}, {"none"}, {"two", "one"}, {"none"}}
	for i, d := range docs {
		names := field(d, "m.name")
		got := make([]string, len(names.Arr))
		for j, n := range names.Arr {
			got[j] = n.Str
		}
		if !reflect.DeepEqual(got, want[i]) {
			t.Errorf("row %d: expected %v, got %v", i, want[i], got)
		}
	}
}

func TestLookupUnknownTable(t *testing.T) {
	err := runError(t, testStore(),
		`db.orders.aggregate([{ $match: {} }, { $lookup: { from: "nope", localField: "shipVia", foreignField: "id", as: "x" } }])`)
	if !errors.Is(err, table.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	var se *StageError
	if !errors.As(err, &se) || se.Index != 1 || se.Stage != "$lookup" {
		t.Errorf("expected stage 1 $lookup, got %v", err)
	}
	var re *ReferenceError
	if !errors.As(err, &re) || re.Kind != "table" || re.Name != "nope" {
		t.Errorf("expected table reference error, got %v", err)
	}
}

func TestLookupUnknownForeignField(t *testing.T) {
	err := runError(t, testStore(),
		`db.orders.aggregate([{ $lookup: { from: "shippers", localField: "shipVia", foreignField: "shipID", as: "x" } }])`)
	var re *ReferenceError
	if !errors.As(err, &re) || re.Kind != "field" {
		t.Errorf("expected field reference error, got %v", err)
	}
}

func TestUnknownSource(t *testing.T) {
	err := runError(t, testStore(), `db.nope.aggregate([])`)
	var se *StageError
	if !errors.As(err, &se) || se.Index != -1 {
		t.Errorf("expected source error, got %v", err)
	}
	if !errors.Is(err, table.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestFieldReference(t *testing.T) {
	err := runError(t, testStore(), `db.orders.aggregate([{ $group: { _id: "$shipper", n: { $sum: 1 } } }])`)
	var re *ReferenceError
	if !errors.As(err, &re) || re.Kind != "field" || re.Name != "shipper" {
		t.Errorf("expected field reference error for shipper, got %v", err)
	}

	// no input, nothing referenced
	docs := runPipeline(t, testStore(), `db.orders.aggregate([{ $match: { orderID: 0 } }, { $group: { _id: "$shipper" } }])`)
	if len(docs) != 0 {
		t.Errorf("expected empty result, got %d", len(docs))
	}
}

func TestUnwindCardinality(t *testing.T) {
	joined := runPipeline(t, testStore(), `db.orders.aggregate([`+lookupShippers+`])`)
	expected := 0
	for _, d := range joined {
		expected += len(field(d, "shipper").Arr)
	}

	docs := runPipeline(t, testStore(), `db.orders.aggregate([`+lookupShippers+`, { $unwind: "$shipper" }])`)
	if len(docs) != expected {
		t.Errorf("expected %d documents, got %d", expected, len(docs))
	}
	for _, d := range docs {
		if field(d, "shipper").Type != table.TypeDoc {
			t.Errorf("expected unwound document, got %s", field(d, "shipper").Type)
		}
	}

	docs = runPipeline(t, testStore(), `db.orders.aggregate([`+lookupShippers+`,
		{ $unwind: { path: "$shipper", preserveNullAndEmptyArrays: true } }])`)
	if len(docs) != 7 {
		t.Fatalf("expected 7 documents, got %d", len(docs))
	}
	last := docs[6]
	if v, ok := last.Get("shipper"); !ok || !v.IsNull() {
		t.Errorf("expected preserved record with null shipper, got %s", v.AsString())
	}
}

func TestUnwindArrayIndex(t *testing.T) {
	docs := runPipeline(t, testStore(), `db.orders.aggregate([
		{ $match: { orderID: 10248 } },
		{ $lookup: { from: "order_details", localField: "orderID", foreignField: "orderID", as: "details" } },
		{ $unwind: { path: "$details", includeArrayIndex: "line" } },
	])`)
	if len(docs) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(docs))
	}
	for i, d := range docs {
		if field(d, "line").Int != int64(i) {
			t.Errorf("expected line %d, got %s", i, field(d, "line").AsString())
		}
	}
	if field(docs[1], "details.productID").Int != 42 {
		t.Errorf("expected product 42 on line 1")
	}
}

func TestUnwindScalar(t *testing.T) {
	docs := runPipeline(t, testStore(), `db.orders.aggregate([{ $unwind: "$customerID" }])`)
	if len(docs) != 7 {
		t.Errorf("expected scalars to unwind to themselves, got %d", len(docs))
	}
}

func TestMatch(t *testing.T) {
	cases := []struct {
		filter string
		want   int
	}{
		{`{ freight: { $gt: 50 } }`, 3},
		{`{ orderDate: { $regex: "-08-" } }`, 4},
		{`{ shipVia: { $in: [1, 3] } }`, 3},
		{`{ shipVia: { $nin: [1, 3] } }`, 4},
		{`{ shipVia: { $ne: 2 } }`, 4},
		{`{ shipVia: null }`, 1},
		{`{ shipVia: { $gte: 2 } }`, 4},
		{`{ shipVia: { $gte: 2, $lt: 3 } }`, 3},
		{`{ shipVia: { $exists: true } }`, 7},
		{`{ nope: { $exists: false } }`, 7},
		{`{ customerID: "HANAR", shipVia: 2 }`, 2},
		{`{ $or: [ { customerID: "HANAR" }, { employeeID: 5 } ] }`, 4},
		{`{ $nor: [ { customerID: "HANAR" }, { employeeID: 5 } ] }`, 3},
		{`{ $and: [ { freight: { $gt: 20 } }, { freight: { $lt: 50 } } ] }`, 3},
		{`{ customerID: { $regex: "^h", $options: "i" } }`, 2},
	}
	for _, tc := range cases {
		docs := runPipeline(t, testStore(), `db.orders.aggregate([{ $match: `+tc.filter+` }])`)
		if len(docs) != tc.want {
			t.Errorf("%s: expected %d, got %d", tc.filter, tc.want, len(docs))
		}
	}
}

func TestMatchFieldComparison(t *testing.T) {
	docs := runPipeline(t, testStore(), `db.products.aggregate([
		{ $match: { unitsInStock: { $lt: "$reorderLevel" } } },
		{ $sort: { unitsInStock: 1 } },
		{ $project: { _id: 0, productID: 1, productName: 1, unitsInStock: 1 } },
	])`)
	want := []string{"Aniseed Syrup", "Chang", "Queso Cabrales"}
	if len(docs) != len(want) {
		t.Fatalf("expected %d products, got %d", len(want), len(docs))
	}
	for i, d := range docs {
		if field(d, "productName").Str != want[i] {
			t.Errorf("row %d: expected %q, got %q", i, want[i], field(d, "productName").Str)
		}
		if !reflect.DeepEqual(d.Keys(), []string{"productID", "productName", "unitsInStock"}) {
			t.Errorf("unexpected shape %v", d.Keys())
		}
	}
}

func TestMatchArrayField(t *testing.T) {
	docs := runPipeline(t, testStore(), `db.orders.aggregate([
		{ $lookup: { from: "order_details", localField: "orderID", foreignField: "orderID", as: "details" } },
		{ $match: { "details.productID": 42 } },
	])`)
	if len(docs) != 1 || field(docs[0], "orderID").Int != 10248 {
		t.Errorf("expected order 10248, got %v", orderIDs(docs))
	}
}

func TestMatchTypeMismatch(t *testing.T) {
	err := runError(t, testStore(), `db.orders.aggregate([{ $match: { customerID: { $gt: 5 } } }])`)
	var tm *TypeMismatchError
	if !errors.As(err, &tm) || tm.Op != "$gt" {
		t.Errorf("expected $gt type mismatch, got %v", err)
	}
	err = runError(t, testStore(), `db.orders.aggregate([{ $match: { freight: { $regex: "3" } } }])`)
	if !errors.As(err, &tm) {
		t.Errorf("expected $regex type mismatch, got %v", err)
	}
}

func TestGroupPartition(t *testing.T) {
	docs := runPipeline(t, testStore(), `db.orders.aggregate([{ $group: { _id: "$shipVia", n: { $count: {} } } }])`)
	var ids []string
	var total int64
	for _, d := range docs {
		ids = append(ids, field(d, "_id").AsString())
		total += field(d, "n").Int
	}
	if total != 7 {
		t.Errorf("expected partition counts to sum to 7, got %d", total)
	}
	if want := []string{"null", "1", "2", "3"}; !reflect.DeepEqual(ids, want) {
		t.Errorf("expected keys %v, got %v", want, ids)
	}
	if !reflect.DeepEqual(docs[0].Keys(), []string{"_id", "n"}) {
		t.Errorf("unexpected shape %v", docs[0].Keys())
	}
}

func TestGroupNumericSemantics(t *testing.T) {
	docs := runPipeline(t, testStore(), `db.orders.aggregate([{ $group: {
		_id: null,
		employees: { $sum: "$employeeID" },
		freight: { $sum: "$freight" },
		avgFreight: { $avg: "$freight" },
		minFreight: { $min: "$freight" },
		maxFreight: { $max: "$freight" },
	} }])`)
	if len(docs) != 1 {
		t.Fatalf("expected 1 group, got %d", len(docs))
	}
	d := docs[0]
	if v := field(d, "employees"); v.Type != table.TypeInt || v.Int != 30 {
		t.Errorf("expected int sum 30, got %s %s", v.Type, v.AsString())
	}
	if v := field(d, "freight"); v.Float != 283.61 {
		t.Errorf("expected exact 283.61, got %v", v.Float)
	}
	if v := field(d, "avgFreight"); math.Abs(v.Float-283.61/7) > 1e-9 {
		t.Errorf("expected avg %v, got %v", 283.61/7, v.Float)
	}
	if field(d, "minFreight").Float != 11.61 || field(d, "maxFreight").Float != 65.83 {
		t.Errorf("unexpected min/max %s %s", field(d, "minFreight").AsString(), field(d, "maxFreight").AsString())
	}
}

func TestGroupDecimalSum(t *testing.T) {
	src := table.NewStore(newTable("t", []string{"x"}, []any{0.1}, []any{0.2}))
	docs := runPipeline(t, src, `db.t.aggregate([{ $group: { _id: null, s: { $sum: "$x" } } }])`)
	if v := field(docs[0], "s"); v.Float != 0.3 {
		t.Errorf("expected 0.3, got %v", v.Float)
	}
}

func TestGroupEmptyPartitionValues(t *testing.T) {
	docs := runPipeline(t, testStore(), `db.orders.aggregate([
		{ $match: { shipVia: null } },
		{ $group: { _id: null, a: { $avg: "$shipVia" }, s: { $sum: "$shipVia" } } },
	])`)
	if len(docs) != 1 {
		t.Fatalf("expected 1 group, got %d", len(docs))
	}
	if !field(docs[0], "a").IsNull() {
		t.Errorf("expected null avg, got %s", field(docs[0], "a").AsString())
	}
	if v := field(docs[0], "s"); v.Type != table.TypeInt || v.Int != 0 {
		t.Errorf("expected int 0 sum, got %s", v.AsString())
	}

	docs = runPipeline(t, testStore(), `db.orders.aggregate([{ $match: { orderID: 1 } }, { $group: { _id: null, n: { $sum: 1 } } }])`)
	if len(docs) != 0 {
		t.Errorf("expected no partitions, got %d", len(docs))
	}
}

func TestGroupFirstFollowsInputOrder(t *testing.T) {
	docs := runPipeline(t, testStore(), `db.orders.aggregate([
		{ $match: { customerID: "HANAR" } },
		{ $sort: { orderID: -1 } },
		{ $group: { _id: "$customerID", first: { $first: "$orderID" }, last: { $last: "$orderID" }, ids: { $push: "$orderID" } } },
	])`)
	if field(docs[0], "first").Int != 10253 || field(docs[0], "last").Int != 10250 {
		t.Errorf("unexpected first/last %s", docs[0].String())
	}
	if len(field(docs[0], "ids").Arr) != 2 {
		t.Errorf("expected 2 pushed ids")
	}
}

func TestGroupCompositeKey(t *testing.T) {
	docs := runPipeline(t, testStore(), `db.orders.aggregate([
		{ $group: { _id: { month: { $month: "$orderDate" } }, sales: { $sum: "$freight" } } },
	])`)
	if len(docs) != 2 {
		t.Fatalf("expected 2 months, got %d", len(docs))
	}
	if field(docs[0], "_id.month").Int != 7 || field(docs[0], "sales").Float != 109.82 {
		t.Errorf("unexpected July group %s", docs[0].String())
	}
	if field(docs[1], "_id.month").Int != 8 || field(docs[1], "sales").Float != 173.79 {
		t.Errorf("unexpected August group %s", docs[1].String())
	}
}

func TestGroupTypeMismatch(t *testing.T) {
	err := runError(t, testStore(), `db.orders.aggregate([{ $group: { _id: null, s: { $sum: "$customerID" } } }])`)
	var tm *TypeMismatchError
	if !errors.As(err, &tm) || tm.Op != "$sum" {
		t.Errorf("expected $sum type mismatch, got %v", err)
	}
}

func TestSortStable(t *testing.T) {
	docs := runPipeline(t, testStore(), `db.orders.aggregate([{ $sort: { shipVia: 1 } }])`)
	want := []int64{10254, 10249, 10251, 10250, 10252, 10253, 10248}
	if got := orderIDs(docs); !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}

	docs = runPipeline(t, testStore(), `db.orders.aggregate([{ $sort: { shipVia: -1 } }])`)
	want = []int64{10248, 10250, 10252, 10253, 10249, 10251, 10254}
	if got := orderIDs(docs); !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestSortIdempotent(t *testing.T) {
	once := runPipeline(t, testStore(), `db.orders.aggregate([{ $sort: { customerID: 1, orderID: -1 } }])`)
	twice := runPipeline(t, testStore(), `db.orders.aggregate([{ $sort: { customerID: 1, orderID: -1 } }, { $sort: { customerID: 1, orderID: -1 } }])`)
	if !reflect.DeepEqual(orderIDs(once), orderIDs(twice)) {
		t.Errorf("sorting twice changed the order: %v vs %v", orderIDs(once), orderIDs(twice))
	}
	want := []int64{10254, 10253, 10250, 10252, 10249, 10251, 10248}
	if got := orderIDs(once); !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestLimitSkip(t *testing.T) {
	cases := []struct {
		stages string
		want   []int64
	}{
		{`{ $limit: 2 }`, []int64{10248, 10249}},
		{`{ $limit: 100 }`, []int64{10248, 10249, 10250, 10251, 10252, 10253, 10254}},
		{`{ $skip: 5 }`, []int64{10253, 10254}},
		{`{ $skip: 10 }`, []int64{}},
		{`{ $skip: 1 }, { $limit: 1 }`, []int64{10249}},
	}
	for _, tc := range cases {
		docs := runPipeline(t, testStore(), `db.orders.aggregate([`+tc.stages+`])`)
		if got := orderIDs(docs); !reflect.DeepEqual(got, tc.want) {
			t.Errorf("%s: expected %v, got %v", tc.stages, tc.want, got)
		}
	}
}

func TestProjectInclusion(t *testing.T) {
	docs := runPipeline(t, testStore(), `db.orders.aggregate([
		{ $limit: 1 },
		{ $project: { orderID: 1, missing: 1, total: { $multiply: ["$freight", 2] } } },
	])`)
	d := docs[0]
	if !reflect.DeepEqual(d.Keys(), []string{"orderID", "missing", "total"}) {
		t.Errorf("unexpected shape %v", d.Keys())
	}
	if !field(d, "missing").IsNull() {
		t.Errorf("expected null for missing field")
	}
	if field(d, "total").Float != 64.76 {
		t.Errorf("expected 64.76, got %v", field(d, "total").Float)
	}
}

func TestProjectKeepsID(t *testing.T) {
	docs := runPipeline(t, testStore(), `db.orders.aggregate([
		{ $group: { _id: "$customerID", n: { $sum: 1 } } },
		{ $project: { n: 1 } },
	])`)
	if !reflect.DeepEqual(docs[0].Keys(), []string{"_id", "n"}) {
		t.Errorf("expected _id first, got %v", docs[0].Keys())
	}
	docs = runPipeline(t, testStore(), `db.orders.aggregate([
		{ $group: { _id: "$customerID", n: { $sum: 1 } } },
		{ $project: { n: 1, _id: 0 } },
	])`)
	if !reflect.DeepEqual(docs[0].Keys(), []string{"n"}) {
		t.Errorf("expected _id suppressed, got %v", docs[0].Keys())
	}
}

func TestProjectExclusion(t *testing.T) {
	docs := runPipeline(t, testStore(), `db.orders.aggregate([{ $project: { freight: 0, orderDate: 0 } }])`)
	want := []string{"orderID", "customerID", "employeeID", "shipVia"}
	if !reflect.DeepEqual(docs[0].Keys(), want) {
		t.Errorf("expected %v, got %v", want, docs[0].Keys())
	}
}

func TestAddFieldsAndCount(t *testing.T) {
	docs := runPipeline(t, testStore(), `db.orders.aggregate([{ $addFields: { doubled: { $multiply: ["$employeeID", 2] } } }])`)
	if v := field(docs[0], "doubled"); v.Type != table.TypeInt || v.Int != 10 {
		t.Errorf("expected int 10, got %s", v.AsString())
	}
	if len(docs[0].Keys()) != 7 {
		t.Errorf("expected original fields kept, got %v", docs[0].Keys())
	}

	docs = runPipeline(t, testStore(), `db.orders.aggregate([{ $count: "n" }])`)
	if len(docs) != 1 || field(docs[0], "n").Int != 7 {
		t.Errorf("expected {n: 7}, got %v", docs)
	}
	docs = runPipeline(t, testStore(), `db.orders.aggregate([{ $match: { orderID: 1 } }, { $count: "n" }])`)
	if len(docs) != 0 {
		t.Errorf("expected no output for empty input, got %d", len(docs))
	}
}

func TestExpressions(t *testing.T) {
	docs := runPipeline(t, testStore(), `db.orders.aggregate([
		{ $match: { orderID: 10248 } },
		{ $lookup: { from: "order_details", localField: "orderID", foreignField: "orderID", as: "details" } },
		{ $project: {
			lines: { $multiply: ["$details.unitPrice", "$details.quantity"] },
			total: { $sum: { $multiply: ["$details.unitPrice", "$details.quantity"] } },
			first: { $arrayElemAt: ["$details.productID", 0] },
			last: { $arrayElemAt: ["$details.productID", -1] },
			beyond: { $arrayElemAt: ["$details.productID", 5] },
			count: { $size: "$details" },
			year: { $year: "$orderDate" },
			day: { $dayOfMonth: "$orderDate" },
			label: { $concat: ["$customerID", "-", "x"] },
			perUnit: { $divide: ["$freight", 0] },
			diff: { $subtract: [10, "$employeeID"] },
			sum: { $add: [1, 2, 3] },
		} },
	])`)
	d := docs[0]
	lines := field(d, "lines")
	if len(lines.Arr) != 3 || lines.Arr[0].Float != 168 || lines.Arr[1].Float != 98 || lines.Arr[2].Float != 174 {
		t.Errorf("unexpected lines %s", lines.AsString())
	}
	if field(d, "total").Float != 440 {
		t.Errorf("expected total 440, got %s", field(d, "total").AsString())
	}
	checks := map[string]string{
		"first": "11", "last": "72", "beyond": "null", "count": "3",
		"year": "1996", "day": "4", "label": "VINET-x", "perUnit": "null",
		"diff": "5", "sum": "6",
	}
	for name, want := range checks {
		if got := field(d, name).AsString(); got != want {
			t.Errorf("%s: expected %s, got %s", name, want, got)
		}
	}
}

func TestIfNull(t *testing.T) {
	docs := runPipeline(t, testStore(), `db.orders.aggregate([
		{ $match: { orderID: 10254 } },
		{ $project: { via: { $ifNull: ["$shipVia", 0] } } },
	])`)
	if v := field(docs[0], "via"); v.Type != table.TypeInt || v.Int != 0 {
		t.Errorf("expected 0, got %s", v.AsString())
	}
}

func TestExpressionErrors(t *testing.T) {
	err := runError(t, testStore(), `db.orders.aggregate([{ $project: { x: { $multiply: ["$customerID", 2] } } }])`)
	var tm *TypeMismatchError
	if !errors.As(err, &tm) || tm.Op != "$multiply" {
		t.Errorf("expected $multiply type mismatch, got %v", err)
	}
	runError(t, testStore(), `db.orders.aggregate([{ $project: { x: { $multiply: [[1, 2], [1, 2, 3]] } } }])`)
	err = runError(t, testStore(), `db.orders.aggregate([{ $project: { x: { $month: "$customerID" } } }])`)
	if !errors.As(err, &tm) || tm.Op != "$month" {
		t.Errorf("expected $month type mismatch, got %v", err)
	}
}

func TestTieBreak(t *testing.T) {
	src := table.NewStore(newTable("orders", []string{"orderID", "shipVia"},
		[]any{1, 2}, []any{2, 1}, []any{3, 2}, []any{4, 1},
	))
	docs := runPipeline(t, src, `db.orders.aggregate([
		{ $group: { _id: "$shipVia", n: { $sum: 1 } } },
		{ $sort: { n: -1 } },
		{ $limit: 1 },
	])`)
	if field(docs[0], "_id").Int != 1 {
		t.Errorf("expected smallest key to win the tie, got %s", docs[0].String())
	}
}

func TestBestShipper(t *testing.T) {
	docs := runPipeline(t, testStore(), `db.orders.aggregate([
		`+lookupShippers+`,
		{ $unwind: "$shipper" },
		{ $group: { _id: { shipperID: "$shipper.shipperID", companyName: "$shipper.companyName" }, total_orders: { $sum: 1 } } },
		{ $sort: { total_orders: -1 } },
		{ $limit: 1 },
		{ $project: { _id: 0, shipperID: "$_id.shipperID", companyName: "$_id.companyName", total_orders: 1 } },
	])`)
	if len(docs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(docs))
	}
	d := docs[0]
	if !reflect.DeepEqual(d.Keys(), []string{"shipperID", "companyName", "total_orders"}) {
		t.Errorf("unexpected shape %v", d.Keys())
	}
	if field(d, "shipperID").Int != 2 || field(d, "companyName").Str != "United Package" || field(d, "total_orders").Int != 3 {
		t.Errorf("unexpected best shipper %s", d.String())
	}
}

func TestScalarComposition(t *testing.T) {
	src := testStore()
	avg := runPipeline(t, src, `db.orders.aggregate([{ $group: { _id: null, avg: { $avg: "$freight" } } }])`)
	v, err := Scalar(avg, "avg")
	if err != nil {
		t.Fatal(err)
	}
	p, err := parser.ParseWithParams(`db.orders.aggregate([{ $match: { freight: { $gt: "$$avg" } } }])`,
		parser.Params{"avg": v})
	if err != nil {
		t.Fatal(err)
	}
	docs, err := Execute(p, src)
	if err != nil {
		t.Fatal(err)
	}
	if want := []int64{10250, 10251, 10252, 10253}; !reflect.DeepEqual(orderIDs(docs), want) {
		t.Errorf("expected %v, got %v", want, orderIDs(docs))
	}
}

func TestScalar(t *testing.T) {
	if v, err := Scalar(nil, "x"); err != nil || !v.IsNull() {
		t.Errorf("expected null for empty result, got %v %v", v, err)
	}
	one := []*table.Doc{table.DocOf("x", 5)}
	if v, err := Scalar(one, "x"); err != nil || v.Int != 5 {
		t.Errorf("expected 5, got %v %v", v, err)
	}
	if _, err := Scalar(one, "y"); err == nil {
		t.Error("expected error for missing field")
	}
	if _, err := Scalar(append(one, table.DocOf("x", 6)), "x"); err == nil {
		t.Error("expected error for two documents")
	}
}

func TestCompareOrder(t *testing.T) {
	ordered := []table.Value{
		table.Null(),
		table.FloatVal(math.NaN()),
		table.IntVal(1),
		table.FloatVal(1.5),
		table.StrVal("a"),
		table.DocVal(table.DocOf("a", 1)),
		table.DocVal(table.DocOf("a", 1, "b", 2)),
		table.ArrayVal([]table.Value{table.IntVal(1)}),
		table.BoolVal(false),
		table.BoolVal(true),
	}
	for i := 0; i+1 < len(ordered); i++ {
		if Compare(ordered[i], ordered[i+1]) >= 0 {
			t.Errorf("expected %s < %s", ordered[i].AsString(), ordered[i+1].AsString())
		}
	}
	if Compare(table.IntVal(1), table.FloatVal(1.0)) != 0 {
		t.Error("expected 1 == 1.0")
	}
	if keyString(table.IntVal(1)) != keyString(table.FloatVal(1.0)) {
		t.Error("expected equal hash keys for 1 and 1.0")
	}
	if Compare(table.FloatVal(math.NaN()), table.FloatVal(math.NaN())) != 0 {
		t.Error("expected NaN == NaN")
	}
}

func TestEngineLogsStages(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	e := New(testStore(), WithLogger(logger))
	_, err := e.Run(&ast.Pipeline{Source: "orders", Stages: []ast.Op{&ast.LimitOp{N: 2}}})
	if err != nil {
		t.Fatal(err)
	}
	if out := buf.String(); !strings.Contains(out, "$limit") || !strings.Contains(out, "out=2") {
		t.Errorf("expected stage log, got %q", out)
	}
}

func closeTo(got, want float64) bool {
	return math.Abs(got-want) <= 1e-15*math.Abs(want)
}

func TestSmallQuotients(t *testing.T) {
	src := table.NewStore(newTable("rates", []string{"x", "y"},
		[]any{1.0, 3e10},
		[]any{1e-7, 3.0},
	))
	docs := runPipeline(t, src, `db.rates.aggregate([{ $project: { q: { $divide: ["$x", "$y"] } } }])`)
	for i, want := range []float64{1.0 / 3e10, 1e-7 / 3} {
		if got := field(docs[i], "q"); got.Type != table.TypeFloat || !closeTo(got.Float, want) {
			t.Errorf("row %d: expected %v, got %s", i, want, got.AsString())
		}
	}

	src = table.NewStore(newTable("samples", []string{"v"}, []any{1e-7}, []any{0.0}, []any{0.0}))
	docs = runPipeline(t, src, `db.samples.aggregate([{ $group: { _id: null, avg: { $avg: "$v" } } }])`)
	if got := field(docs[0], "avg"); !closeTo(got.Float, 1e-7/3) {
		t.Errorf("expected %v, got %s", 1e-7/3, got.AsString())
	}
}

func TestIntegerOverflow(t *testing.T) {
	src := table.NewStore(newTable("counters", []string{"n"}, []any{int64(math.MaxInt64)}, []any{1}))
	docs := runPipeline(t, src, `db.counters.aggregate([{ $group: { _id: null, total: { $sum: "$n" } } }])`)
	if got := field(docs[0], "total"); got.Type != table.TypeFloat || got.Float != math.Pow(2, 63) {
		t.Errorf("expected 2^63 as a float, got %s %s", got.Type, got.AsString())
	}

	docs = runPipeline(t, src, `db.counters.aggregate([
		{ $project: { a: { $add: ["$n", 1] }, m: { $multiply: ["$n", 2] }, s: { $subtract: [0, "$n"] } } },
	])`)
	big := docs[0]
	if got := field(big, "a"); got.Type != table.TypeFloat || got.Float != math.Pow(2, 63) {
		t.Errorf("$add: expected 2^63 as a float, got %s %s", got.Type, got.AsString())
	}
	if got := field(big, "m"); got.Type != table.TypeFloat || got.Float != math.Pow(2, 64) {
		t.Errorf("$multiply: expected 2^64 as a float, got %s %s", got.Type, got.AsString())
	}
	if got := field(big, "s"); got.Type != table.TypeInt || got.Int != -math.MaxInt64 {
		t.Errorf("$subtract: expected an int, got %s %s", got.Type, got.AsString())
	}
	if got := field(docs[1], "m"); got.Type != table.TypeInt || got.Int != 2 {
		t.Errorf("expected int 2, got %s %s", got.Type, got.AsString())
	}
}

func TestNaNOrdering(t *testing.T) {
	src := table.NewStore(newTable("readings", []string{"v"},
		[]any{3}, []any{math.NaN()}, []any{1}, []any{2.0}, []any{math.NaN()},
	))
	docs := runPipeline(t, src, `db.readings.aggregate([{ $sort: { v: 1 } }])`)
	var got []string
	for _, d := range docs {
		got = append(got, field(d, "v").AsString())
	}
	if want := []string{"NaN", "NaN", "1", "2", "3"}; !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}

	docs = runPipeline(t, src, `db.readings.aggregate([
		{ $group: { _id: "$v", n: { $count: {} } } },
	])`)
	if len(docs) != 4 {
		t.Fatalf("expected 4 groups, got %d", len(docs))
	}
	if id := field(docs[0], "_id"); !math.IsNaN(id.Float) || field(docs[0], "n").Int != 2 {
		t.Errorf("expected the NaN group first with 2 members, got %s", docs[0])
	}

	docs = runPipeline(t, src, `db.readings.aggregate([{ $group: { _id: null, s: { $sum: "$v" } } }])`)
	if s := field(docs[0], "s"); s.Type != table.TypeFloat || !math.IsNaN(s.Float) {
		t.Errorf("expected a NaN sum, got %s", s.AsString())
	}
}

func TestNewAccumulator(t *testing.T) {
	if _, ok := newAccumulator("$push").(*pushAcc); !ok {
		t.Error("expected $push to build a pushAcc")
	}
	defer func() {
		if recover() == nil {
			t.Error("expected a panic for an unknown accumulator")
		}
	}()
	newAccumulator("$median")
}
