// Package northwind holds the sales dataset contract and the fixed set of
// reports answered over it.
package northwind

import (
	"strings"

	"github.com/trilochan-behera-dev/database-query/table"
)

const (
	integer = table.KindInt
	float   = table.KindFloat
	boolean = table.KindBool
	date    = table.KindDate
)

// define builds a schema from a comma-separated column list. Columns not
// named in kinds are strings.
func define(name, columns string, kinds map[string]table.Kind) *table.Schema {
	s := &table.Schema{Table: name}
	for _, c := range strings.Split(columns, ",") {
		s.Fields = append(s.Fields, table.Field{Name: c, Kind: kinds[c]})
	}
	return s
}

var schemas = []*table.Schema{
	define("categories", "categoryID,categoryName,description,picture",
		map[string]table.Kind{"categoryID": integer}),
	define("customers", "customerID,companyName,contactName,contactTitle,address,city,region,postalCode,country,phone,fax", nil),
	define("employee_territories", "employeeID,territoryID",
		map[string]table.Kind{"employeeID": integer}),
	define("employees", "employeeID,lastName,firstName,title,titleOfCourtesy,birthDate,hireDate,address,city,region,postalCode,country,homePhone,extension,photo,notes,reportsTo,photoPath",
		map[string]table.Kind{"employeeID": integer, "birthDate": date, "hireDate": date, "reportsTo": integer}),
	define("order_details", "orderID,productID,unitPrice,quantity,discount",
		map[string]table.Kind{"orderID": integer, "productID": integer, "unitPrice": float, "quantity": integer, "discount": float}),
	define("orders", "orderID,customerID,employeeID,orderDate,requiredDate,shippedDate,shipVia,freight,shipName,shipAddress,shipCity,shipRegion,shipPostalCode,shipCountry",
		map[string]table.Kind{"orderID": integer, "employeeID": integer, "orderDate": date, "requiredDate": date, "shippedDate": date, "shipVia": integer, "freight": float}),
	define("products", "productID,productName,supplierID,categoryID,quantityPerUnit,unitPrice,unitsInStock,unitsOnOrder,reorderLevel,discontinued",
		map[string]table.Kind{"productID": integer, "supplierID": integer, "categoryID": integer, "unitPrice": float, "unitsInStock": integer, "unitsOnOrder": integer, "reorderLevel": integer, "discontinued": boolean}),
	define("regions", "regionID,regionDescription",
		map[string]table.Kind{"regionID": integer}),
	define("shippers", "shipperID,companyName,phone",
		map[string]table.Kind{"shipperID": integer}),
	define("suppliers", "supplierID,companyName,contactName,contactTitle,address,city,region,postalCode,country,phone,fax,homePage",
		map[string]table.Kind{"supplierID": integer}),
	define("territories", "territoryID,territoryDescription,regionID",
		map[string]table.Kind{"regionID": integer}),
}

// Catalog returns the schemas of the eleven dataset tables.
func Catalog() table.Catalog {
	c := make(table.Catalog, len(schemas))
	for _, s := range schemas {
		c[s.Table] = s
	}
	return c
}
