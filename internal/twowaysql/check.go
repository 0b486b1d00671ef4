package twowaysql

import "errors"

// Check validates sql without rendering it: block structure, every IF
// condition, every variable expression and the outside SQL markers. All
// problems found are joined into the returned error.
func Check(sql string) error {
	p := &parser{sql: sql}
	var errs []error
	if _, err := p.parse(); err != nil {
		errs = append(errs, err)
	}
	errs = append(errs, p.exprErrs...)
	_, outsideErrs := parseOutside(sql)
	errs = append(errs, outsideErrs...)
	return errors.Join(errs...)
}
