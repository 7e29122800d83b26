package repositories

// rowScanner abstracts pgx.Row and pgx.Rows so scan helpers work with both.
type rowScanner interface {
	Scan(dest ...interface{}) error
}
