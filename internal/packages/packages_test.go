package packages

import (
	"context"
	"testing"

	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/models"
	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/permissions"
	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type caps struct{ c permissions.Capabilities }

func (c caps) Capabilities() permissions.Capabilities { return c.c }

type stub struct {
	created []models.Package
	patches []any
	active  []bool
}

func (s *stub) ListPackages(_ context.Context, activeOnly bool) ([]models.Package, error) {
	s.active = append(s.active, activeOnly)
	return nil, nil
}
func (s *stub) GetPackage(context.Context, models.ID) (*models.Package, error) { return nil, nil }
func (s *stub) CreatePackage(_ context.Context, p models.Package) error {
	s.created = append(s.created, p)
	return nil
}
func (s *stub) UpdatePackage(_ context.Context, _ models.ID, patch any) error {
	s.patches = append(s.patches, patch)
	return nil
}
func (s *stub) DeletePackage(context.Context, models.ID) error { return nil }

func TestFormPackage(t *testing.T) {
	f := NewForm(nil)
	assert.True(t, f.Active)
	assert.Equal(t, models.PackageArtwork, f.Type)

	_, err := f.Package()
	p, ok := validation.AsProblems(err)
	require.True(t, ok)
	assert.True(t, p.Has("name"))
	assert.True(t, p.Has("criteria"))

	f.Name = "Artes"
	f.Criteria = append(f.Criteria, models.Criterion{Name: " Cores ", Weight: 6})
	p, _ = validation.AsProblems(func() error { _, err := f.Package(); return err }())
	assert.True(t, p.Has("criteria[1].weight"))

	f.Criteria[1].Weight = 5
	pkg, err := f.Package()
	require.NoError(t, err)
	require.Len(t, pkg.Criteria, 1, "unnamed criteria are dropped")
	assert.Equal(t, "Cores", pkg.Criteria[0].Name)
}

func TestServiceAccess(t *testing.T) {
	backend := &stub{}
	plain := &Service{API: backend, Caps: caps{permissions.For(&models.User{Email: "u@x.com"})}}
	_, err := plain.List(context.Background(), false)
	assert.ErrorIs(t, err, permissions.ErrForbidden)
	_, err = plain.List(context.Background(), true)
	require.NoError(t, err)
	assert.ErrorIs(t, plain.SetActive(context.Background(), "1", false), permissions.ErrForbidden)

	mgr := &Service{API: backend, Caps: caps{permissions.For(&models.User{Email: "m@x.com", Permissions: models.Permissions{"manage_packages": true}})}}
	form := Form{Name: "Vídeos", Type: models.PackageVideo, Criteria: []models.Criterion{{Name: "Áudio", Weight: 2}}}
	require.NoError(t, mgr.Save(context.Background(), "", form))
	require.Len(t, backend.created, 1)
	require.NoError(t, mgr.Save(context.Background(), "4", form))
	require.NoError(t, mgr.SetActive(context.Background(), "4", false))
	assert.Equal(t, map[string]bool{"active": false}, backend.patches[1])
}
