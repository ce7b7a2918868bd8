package domain

// Rating is a user's explicit 1..5 preference for a keyword.
// One row exists per (user, keyword) pair, last write wins.
type Rating struct {
	UserID    int64 `db:"user_id"`
	KeywordID int64 `db:"keyword_id"`
	Rating    int   `db:"rating"`
}

// Keyword is a topical tag with a surrogate key assigned on first sight
type Keyword struct {
	ID   int64  `db:"keyword_id"`
	Text string `db:"keyword"`
}
