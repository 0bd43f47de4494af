package users

import (
	"context"
	"errors"

	"github.com/angelmondragon/miyf-books/internal/repo"
	"github.com/angelmondragon/miyf-books/pkg/enums"
	"github.com/angelmondragon/miyf-books/pkg/rowstore"
)

// SheetName is the profile tab.
const SheetName = "users"

var schema = rowstore.Schema{
	Sheet:     SheetName,
	Header:    []string{"uid", "email", "name", "role", "status", "createdAt"},
	KeyColumn: 0,
}

type codec struct{}

func (codec) Encode(p Profile) []string {
	return []string{p.UID, p.Email, p.Name, string(p.Role), string(p.Status), p.CreatedAt}
}

// Decode tolerates hand edited roles: anything unrecognised reads as Basic User.
func (codec) Decode(cells []string) (Profile, error) {
	role, err := enums.ParseRole(rowstore.Cell(cells, 3))
	if err != nil {
		role = enums.RoleBasicUser
	}
	return Profile{
		UID:       rowstore.Cell(cells, 0),
		Email:     normalizeEmail(rowstore.Cell(cells, 1)),
		Name:      rowstore.Cell(cells, 2),
		Role:      role,
		Status:    enums.UserStatus(rowstore.Cell(cells, 4)),
		CreatedAt: rowstore.Cell(cells, 5),
	}, nil
}

// Repository persists user profiles keyed by uid.
type Repository interface {
	Get(ctx context.Context, uid string) (Profile, error)
	List(ctx context.Context) ([]Profile, error)
	Create(ctx context.Context, profile Profile) (Profile, error)
	Update(ctx context.Context, uid string, mutate func(Profile) Profile) (Profile, error)
}

type sheetRepository struct {
	table *rowstore.Table[Profile]
}

func NewRepository(base repo.Base) (Repository, error) {
	table, err := repo.OpenLenient[Profile](base, schema, codec{})
	if err != nil {
		return nil, err
	}
	return &sheetRepository{table: table}, nil
}

// Get returns rowstore.ErrNotFound for unknown uids, including when the sheet
// does not exist yet.
func (r *sheetRepository) Get(ctx context.Context, uid string) (Profile, error) {
	row, err := r.table.Get(ctx, uid)
	if errors.Is(err, rowstore.ErrSheetNotFound) {
		return Profile{}, rowstore.ErrNotFound
	}
	if err != nil {
		return Profile{}, err
	}
	return row.Record, nil
}

func (r *sheetRepository) List(ctx context.Context) ([]Profile, error) {
	rows, err := r.table.ReadAll(ctx)
	if errors.Is(err, rowstore.ErrSheetNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	out := make([]Profile, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.Record)
	}
	return out, nil
}

func (r *sheetRepository) Create(ctx context.Context, profile Profile) (Profile, error) {
	row, err := r.table.AppendCreating(ctx, profile)
	if err != nil {
		return Profile{}, err
	}
	return row.Record, nil
}

func (r *sheetRepository) Update(ctx context.Context, uid string, mutate func(Profile) Profile) (Profile, error) {
	row, err := r.table.UpdateRow(ctx, uid, func(p Profile) (Profile, error) {
		return mutate(p), nil
	}, rowstore.UpdateOptions{})
	if err != nil {
		return Profile{}, err
	}
	return row.Record, nil
}
