package domain

// Row is one unit of work parsed from the input CSV.
// ID is the value of the designated "id" column; Inputs holds every other
// column and is sent verbatim as the workflow parameters.
type Row struct {
	ID     string
	Inputs map[string]string
}
