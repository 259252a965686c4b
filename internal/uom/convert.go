// Package uom converts order quantities between a product's package unit
// (case, carton) and its base unit (piece). Ledger storage is always in
// base units; the API speaks package units.
package uom

// Normalize coerces a stored conversion factor into a usable one. A factor
// of one or less, or an absent factor, means the product has no package
// unit and all quantities are base-unit quantities.
func Normalize(factor int64) int64 {
	if factor <= 1 {
		return 1
	}
	return factor
}

// HasPackageUnit reports whether the factor describes a real package unit.
func HasPackageUnit(factor int64) bool {
	return factor > 1
}

// ToBase converts a package-unit quantity into base units.
func ToBase(packages, factor int64) int64 {
	return packages * Normalize(factor)
}

// ToPackages converts a base-unit quantity into whole packages. The result
// is floored: a partial package is never implied as available.
func ToPackages(base, factor int64) int64 {
	return base / Normalize(factor)
}
