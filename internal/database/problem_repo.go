package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/radixapp/radix/internal/domain"
)

// ProblemRepository handles problem data access
type ProblemRepository struct {
	db *DB
}

func NewProblemRepository(db *DB) *ProblemRepository {
	return &ProblemRepository{db: db}
}

// UpdateProblem is the author-editable subset of a problem.
type UpdateProblem struct {
	Title           string                 `json:"title"`
	Description     string                 `json:"description"`
	TestCases       []domain.TestCase      `json:"testCases"`
	BoilerplateCode domain.BoilerplateCode `json:"boilerplateCode"`
	Difficulty      int                    `json:"difficulty"`
}

// CreateEmpty inserts an untitled problem owned by the author and
// returns its ID.
func (r *ProblemRepository) CreateEmpty(ctx context.Context, author domain.PublicUser) (uuid.UUID, error) {
	id := uuid.New()
	authorJSON, err := json.Marshal(author)
	if err != nil {
		return uuid.Nil, fmt.Errorf("marshal author: %w", err)
	}

	_, err = r.db.Pool.Exec(ctx, `
		INSERT INTO problems (id, title, author, author_id, description,
		                      boilerplate_python, boilerplate_javascript, test_cases, difficulty)
		VALUES ($1, 'Untitled', $2, $3, '', '', '', '[]', 0)
	`, id, authorJSON, author.ID)
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

// GetByID fetches a full problem, including every test case.
func (r *ProblemRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Problem, error) {
	problem := &domain.Problem{}
	var authorJSON, testCasesJSON []byte
	err := r.db.Pool.QueryRow(ctx, `
		SELECT id, title, author, description,
		       boilerplate_python, boilerplate_javascript, test_cases, difficulty
		FROM problems WHERE id = $1
	`, id).Scan(
		&problem.ID, &problem.Title, &authorJSON, &problem.Description,
		&problem.BoilerplateCode.Python, &problem.BoilerplateCode.JavaScript,
		&testCasesJSON, &problem.Difficulty,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrProblemNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(authorJSON, &problem.Author); err != nil {
		return nil, fmt.Errorf("unmarshal author: %w", err)
	}
	if err := json.Unmarshal(testCasesJSON, &problem.TestCases); err != nil {
		return nil, fmt.Errorf("unmarshal test cases: %w", err)
	}
	return problem, nil
}

// Update rewrites an author's problem. Returns ErrNotAuthor when the
// problem exists but belongs to someone else.
func (r *ProblemRepository) Update(ctx context.Context, problemID, userID uuid.UUID, data *UpdateProblem) error {
	testCasesJSON, err := json.Marshal(data.TestCases)
	if err != nil {
		return fmt.Errorf("marshal test cases: %w", err)
	}

	tag, err := r.db.Pool.Exec(ctx, `
		UPDATE problems
		SET title = $3, description = $4, test_cases = $5,
		    boilerplate_python = $6, boilerplate_javascript = $7, difficulty = $8
		WHERE id = $1 AND author_id = $2
	`, problemID, userID, data.Title, data.Description, testCasesJSON,
		data.BoilerplateCode.Python, data.BoilerplateCode.JavaScript, data.Difficulty)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotAuthor
	}
	return nil
}

// GetPaginate returns the next page of problem listings after the
// cursor (keyset pagination, 10 per page).
func (r *ProblemRepository) GetPaginate(ctx context.Context, cursor *uuid.UUID) ([]domain.ListingProblem, error) {
	query := `
		SELECT id, title, author, description, difficulty
		FROM problems
		ORDER BY created_at, id
		LIMIT 10`
	args := []any{}
	if cursor != nil {
		query = `
		SELECT id, title, author, description, difficulty
		FROM problems
		WHERE (created_at, id) > (SELECT created_at, id FROM problems WHERE id = $1)
		ORDER BY created_at, id
		LIMIT 10`
		args = append(args, *cursor)
	}

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanListings(rows)
}

// Search returns up to 10 listings whose title or description matches.
func (r *ProblemRepository) Search(ctx context.Context, what string) ([]domain.ListingProblem, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, title, author, description, difficulty
		FROM problems
		WHERE title ILIKE '%' || $1 || '%' OR description ILIKE '%' || $1 || '%'
		ORDER BY created_at
		LIMIT 10
	`, what)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanListings(rows)
}

func scanListings(rows pgx.Rows) ([]domain.ListingProblem, error) {
	var problems []domain.ListingProblem
	for rows.Next() {
		var p domain.ListingProblem
		var authorJSON []byte
		if err := rows.Scan(&p.ID, &p.Title, &authorJSON, &p.Description, &p.Difficulty); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(authorJSON, &p.Author); err != nil {
			return nil, fmt.Errorf("unmarshal author: %w", err)
		}
		problems = append(problems, p)
	}
	return problems, rows.Err()
}
