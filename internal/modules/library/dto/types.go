package dto

type AddFileInput struct {
	Path    string
	Title   string
	Authors []string
	Tags    []string
}

type AddURLInput struct {
	URL     string
	Title   string
	Authors []string
	Tags    []string
}

type PersistProgressInput struct {
	UserBookID  int
	ProgressPct int
}

type ReindexInput struct{}

type DocumentOutput struct {
	ID         string
	Title      string
	Kind       string
	Authors    []string
	UserBookID int
	Status     string
	Percent    float64
	NotePath   string
}

type DocumentDetailOutput struct {
	ID         string
	Title      string
	Kind       string
	Authors    []string
	URL        string
	FilePath   string
	NotePath   string
	Tags       []string
	UserBookID int
	Status     string
	Percent    float64
}

type UserProgressOutput struct {
	DocumentID  string
	UserBookID  int
	ProgressPct float64
}
