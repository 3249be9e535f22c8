package northwind

// Report is one business question and the query that answers it.
type Report struct {
	Name     string
	Question string
	Query    string
	Columns  []string // output fields, in order
	Depends  *Dependency
}

// Dependency binds a scalar taken from another report's single output
// document to a "$$Param" operand of this report's query.
type Dependency struct {
	Report string
	Field  string
	Param  string
}

// Reports is the fixed report set, in presentation order.
var Reports = []Report{
	{
		Name:     "best-shipper",
		Question: "Which shipper do we use the most to ship our orders out through?",
		Columns:  []string{"shipperID", "companyName", "total_orders"},
		Query: `db.orders.aggregate([
  { $group: { _id: "$shipVia", total_orders: { $sum: 1 } } },
  { $lookup: { from: "shippers", localField: "_id", foreignField: "shipperID", as: "shipper" } },
  { $unwind: "$shipper" },
  { $sort: { total_orders: -1 } },
  { $limit: 1 },
  { $project: { shipperID: "$shipper.shipperID", companyName: "$shipper.companyName", total_orders: 1, _id: 0 } }
])`,
	},
	{
		Name:     "employee-managers",
		Question: "List each employee with the name of their manager.",
		Columns:  []string{"employeeID", "lastName", "firstName", "ManagerLastName", "ManagerFirstName"},
		Query: `db.employees.aggregate([
  { $lookup: { from: "employees", localField: "reportsTo", foreignField: "employeeID", as: "manager" } },
  { $project: {
      employeeID: 1,
      lastName: 1,
      firstName: 1,
      ManagerLastName: { $arrayElemAt: ["$manager.lastName", 0] },
      ManagerFirstName: { $arrayElemAt: ["$manager.firstName", 0] },
      _id: 0
  } }
])`,
	},
	{
		Name:     "november-birthdays",
		Question: "What are the last names of all employees who were born in November?",
		Columns:  []string{"lastName"},
		Query:    `db.employees.find({ birthDate: { $regex: "-11-" } }, { lastName: 1, _id: 0 })`,
	},
	{
		Name:     "employee-territories",
		Question: "List each employee and territory, sorted by territory and then by last name.",
		Columns:  []string{"lastName", "firstName", "territory"},
		Query: `db.employees.aggregate([
  { $lookup: { from: "employee_territories", localField: "employeeID", foreignField: "employeeID", as: "et" } },
  { $unwind: "$et" },
  { $lookup: { from: "territories", localField: "et.territoryID", foreignField: "territoryID", as: "territory" } },
  { $unwind: "$territory" },
  { $project: { lastName: 1, firstName: 1, territory: "$territory.territoryDescription", _id: 0 } },
  { $sort: { territory: 1, lastName: 1 } }
])`,
	},
	{
		Name:     "best-selling-product",
		Question: "Which product has sold the most units of all time?",
		Columns:  []string{"productID", "productName", "total_quantity"},
		Query: `db.order_details.aggregate([
  { $group: { _id: "$productID", total_quantity: { $sum: "$quantity" } } },
  { $lookup: { from: "products", localField: "_id", foreignField: "productID", as: "product" } },
  { $unwind: "$product" },
  { $sort: { total_quantity: -1 } },
  { $limit: 1 },
  { $project: { productID: "$product.productID", productName: "$product.productName", total_quantity: 1, _id: 0 } }
])`,
	},
	{
		Name:     "worst-selling-product",
		Question: "Of the products sold at least once, which has sold the fewest units?",
		Columns:  []string{"productID", "productName", "total_quantity"},
		Query: `db.order_details.aggregate([
  { $group: { _id: "$productID", total_quantity: { $sum: "$quantity" } } },
  { $lookup: { from: "products", localField: "_id", foreignField: "productID", as: "product" } },
  { $unwind: "$product" },
  { $match: { total_quantity: { $gt: 0 } } },
  { $sort: { total_quantity: 1 } },
  { $limit: 1 },
  { $project: { productID: "$product.productID", productName: "$product.productName", total_quantity: 1, _id: 0 } }
])`,
	},
	{
		Name:     "best-sales-month",
		Question: "Which calendar month has been best for sales?",
		Columns:  []string{"month", "total_sales"},
		Query: `db.order_details.aggregate([
  { $lookup: { from: "orders", localField: "orderID", foreignField: "orderID", as: "order" } },
  { $unwind: "$order" },
  { $group: {
      _id: { $month: "$order.orderDate" },
      total_sales: { $sum: { $multiply: ["$unitPrice", "$quantity"] } }
  } },
  { $sort: { total_sales: -1 } },
  { $limit: 1 },
  { $project: { month: "$_id", total_sales: 1, _id: 0 } }
])`,
	},
	{
		Name:     "best-salesperson",
		Question: "Who is our best salesperson?",
		Columns:  []string{"employeeID", "lastName", "firstName", "total_sales"},
		Query: `db.order_details.aggregate([
  { $lookup: { from: "orders", localField: "orderID", foreignField: "orderID", as: "order" } },
  { $unwind: "$order" },
  { $lookup: { from: "employees", localField: "order.employeeID", foreignField: "employeeID", as: "employee" } },
  { $unwind: "$employee" },
  { $group: {
      _id: { employeeID: "$employee.employeeID", lastName: "$employee.lastName", firstName: "$employee.firstName" },
      total_sales: { $sum: { $multiply: ["$quantity", "$unitPrice"] } }
  } },
  { $sort: { total_sales: -1 } },
  { $limit: 1 },
  { $project: {
      employeeID: "$_id.employeeID",
      lastName: "$_id.lastName",
      firstName: "$_id.firstName",
      total_sales: 1,
      _id: 0
  } }
])`,
	},
	{
		Name:     "product-report",
		Question: "Product report with supplier and category, ordered by category.",
		Columns:  []string{"productID", "productName", "supplierName", "productCategory"},
		Query: `db.products.aggregate([
  { $lookup: { from: "suppliers", localField: "supplierID", foreignField: "supplierID", as: "supplier" } },
  { $unwind: "$supplier" },
  { $lookup: { from: "categories", localField: "categoryID", foreignField: "categoryID", as: "category" } },
  { $unwind: "$category" },
  { $project: {
      productID: 1,
      productName: 1,
      supplierName: "$supplier.companyName",
      productCategory: "$category.categoryName",
      _id: 0
  } },
  { $sort: { productCategory: 1 } }
])`,
	},
	{
		Name:     "employees-by-region",
		Question: "How many employees work in each sales region?",
		Columns:  []string{"_id", "employeeCount"},
		// An employee with several territories in one region counts once.
		Query: `db.employees.aggregate([
  { $lookup: { from: "employee_territories", localField: "employeeID", foreignField: "employeeID", as: "et" } },
  { $unwind: "$et" },
  { $lookup: { from: "territories", localField: "et.territoryID", foreignField: "territoryID", as: "territory" } },
  { $unwind: "$territory" },
  { $lookup: { from: "regions", localField: "territory.regionID", foreignField: "regionID", as: "region" } },
  { $unwind: "$region" },
  { $group: { _id: { region: "$region.regionDescription", employeeID: "$employeeID" } } },
  { $group: { _id: "$_id.region", employeeCount: { $sum: 1 } } }
])`,
	},
	{
		Name:     "sales-by-region",
		Question: "What are the sales totals by region?",
		Columns:  []string{"regionDescription", "totalSales"},
		// Sales are credited to each region the order's employee covers.
		Query: `db.orders.aggregate([
  { $lookup: { from: "order_details", localField: "orderID", foreignField: "orderID", as: "orderDetails" } },
  { $unwind: "$orderDetails" },
  { $lookup: { from: "employee_territories", localField: "employeeID", foreignField: "employeeID", as: "et" } },
  { $unwind: "$et" },
  { $lookup: { from: "territories", localField: "et.territoryID", foreignField: "territoryID", as: "territory" } },
  { $unwind: "$territory" },
  { $lookup: { from: "regions", localField: "territory.regionID", foreignField: "regionID", as: "region" } },
  { $unwind: "$region" },
  { $group: {
      _id: { orderID: "$orderID", productID: "$orderDetails.productID", region: "$region.regionDescription" },
      lineTotal: { $first: { $multiply: ["$orderDetails.unitPrice", "$orderDetails.quantity"] } }
  } },
  { $group: { _id: "$_id.region", totalSales: { $sum: "$lineTotal" } } },
  { $project: { regionDescription: "$_id", totalSales: 1, _id: 0 } }
])`,
	},
	{
		Name:     "average-order-value",
		Question: "What is the average value of a sales order line?",
		Columns:  []string{"average_order_value"},
		Query: `db.order_details.aggregate([
  { $group: { _id: null, average_order_value: { $avg: { $multiply: ["$unitPrice", "$quantity"] } } } },
  { $project: { _id: 0 } }
])`,
	},
	{
		Name:     "above-average-orders",
		Question: "Which orders have a total value above the average order value?",
		Columns:  []string{"orderID", "orderDate", "customerName", "total_order_value"},
		Depends:  &Dependency{Report: "average-order-value", Field: "average_order_value", Param: "averageOrderValue"},
		Query: `db.orders.aggregate([
  { $lookup: { from: "customers", localField: "customerID", foreignField: "customerID", as: "customer" } },
  { $unwind: "$customer" },
  { $lookup: { from: "order_details", localField: "orderID", foreignField: "orderID", as: "order_details" } },
  { $project: {
      orderID: 1,
      orderDate: 1,
      customerName: "$customer.companyName",
      total_order_value: { $sum: { $multiply: ["$order_details.unitPrice", "$order_details.quantity"] } },
      _id: 0
  } },
  { $match: { total_order_value: { $gt: "$$averageOrderValue" } } }
])`,
	},
	{
		Name:     "customer-sales",
		Question: "Total sales per customer, including customers without orders.",
		Columns:  []string{"_id", "companyName", "total_sales"},
		Query: `db.customers.aggregate([
  { $lookup: { from: "orders", localField: "customerID", foreignField: "customerID", as: "orders" } },
  { $unwind: { path: "$orders", preserveNullAndEmptyArrays: true } },
  { $lookup: { from: "order_details", localField: "orders.orderID", foreignField: "orderID", as: "order_details" } },
  { $group: {
      _id: "$customerID",
      companyName: { $first: "$companyName" },
      total_sales: { $sum: { $multiply: ["$order_details.unitPrice", "$order_details.quantity"] } }
  } }
])`,
	},
	{
		Name:     "reorder-report",
		Question: "Which products need to be reordered? Discontinued products are left out.",
		Columns:  []string{"productID", "productName", "unitsInStock"},
		Query:    `db.products.find({ unitsInStock: { $lte: "$reorderLevel" }, discontinued: { $ne: true } }, { productID: 1, productName: 1, unitsInStock: 1, _id: 0 })`,
	},
}

// Find returns the report with the given name.
func Find(name string) (Report, bool) {
	for _, r := range Reports {
		if r.Name == name {
			return r, true
		}
	}
	return Report{}, false
}
