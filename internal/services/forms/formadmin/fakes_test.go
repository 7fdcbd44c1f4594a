package formadmin

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"
	"time"

	"github.com/mw/forms/internal/platform/pagination"
	"github.com/mw/forms/internal/services/forms/domain"
	"github.com/mw/forms/internal/services/forms/storage"
)

type versionKey struct {
	id      int64
	version int
}

type fakeFormStore struct {
	instances  map[int64]domain.FormInstance
	versions   map[versionKey]domain.FormInstanceVersion
	nextID     int64
	getErr     error
	versionErr error
	updateErr  error
	updates    []storage.UpdateFormInstanceInput
}

func newFakeFormStore() *fakeFormStore {
	return &fakeFormStore{
		instances: map[int64]domain.FormInstance{},
		versions:  map[versionKey]domain.FormInstanceVersion{},
		nextID:    100,
	}
}

func (f *fakeFormStore) put(instance domain.FormInstance) {
	f.instances[instance.ID] = instance
	f.versions[versionKey{instance.ID, instance.Version}] = domain.FormInstanceVersion{
		FormInstanceID:     instance.ID,
		Version:            instance.Version,
		StructureVersionID: instance.StructureVersionID,
		Settings:           instance.Settings.Clone(),
		Status:             instance.Status,
	}
}

func (f *fakeFormStore) GetFormInstance(_ context.Context, id int64) (domain.FormInstance, error) {
	if f.getErr != nil {
		return domain.FormInstance{}, f.getErr
	}
	instance, ok := f.instances[id]
	if !ok {
		return domain.FormInstance{}, storage.ErrNotFound
	}
	instance.Settings = instance.Settings.Clone()
	return instance, nil
}

func (f *fakeFormStore) GetFormInstanceVersion(_ context.Context, id int64, version int) (domain.FormInstanceVersion, error) {
	if f.versionErr != nil {
		return domain.FormInstanceVersion{}, f.versionErr
	}
	snapshot, ok := f.versions[versionKey{id, version}]
	if !ok {
		return domain.FormInstanceVersion{}, storage.ErrNotFound
	}
	return snapshot, nil
}

func (f *fakeFormStore) CreateFormInstance(_ context.Context, input storage.CreateFormInstanceInput) (domain.FormInstance, error) {
	f.nextID++
	instance := domain.FormInstance{
		ID:                 f.nextID,
		CompanyID:          input.CompanyID,
		GroupID:            input.GroupID,
		UserID:             input.UserID,
		StructureID:        input.StructureVersion.StructureID,
		StructureVersionID: input.StructureVersion.ID,
		Version:            1,
		Name:               input.Name,
		Description:        input.Description,
		Schema:             input.StructureVersion.Schema,
		Layout:             input.StructureVersion.Layout,
		Settings:           input.Settings,
		Status:             input.Status,
	}
	f.put(instance)
	return instance, nil
}

func (f *fakeFormStore) UpdateFormInstance(_ context.Context, input storage.UpdateFormInstanceInput) (domain.FormInstance, error) {
	f.updates = append(f.updates, input)
	if f.updateErr != nil {
		return domain.FormInstance{}, f.updateErr
	}
	instance, ok := f.instances[input.FormInstanceID]
	if !ok {
		return domain.FormInstance{}, storage.ErrNotFound
	}
	if instance.Version != input.ExpectedVersion {
		return domain.FormInstance{}, storage.ErrVersionConflict
	}
	instance.Version++
	instance.UserID = input.UserID
	instance.Name = input.Name
	instance.Description = input.Description
	instance.StructureVersionID = input.StructureVersionID
	instance.Schema = input.Schema
	instance.Layout = input.Layout
	instance.Settings = input.Settings.Clone()
	instance.Status = input.Status
	f.put(instance)
	return instance, nil
}

func (f *fakeFormStore) ListFormInstances(_ context.Context, companyID int64, pageSize int, pageToken string) (storage.FormInstancePage, error) {
	after, err := pagination.DecodeIDToken(pageToken)
	if err != nil {
		return storage.FormInstancePage{}, err
	}
	ids := make([]int64, 0, len(f.instances))
	for id, instance := range f.instances {
		if id > after && (companyID == 0 || instance.CompanyID == companyID) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	page := storage.FormInstancePage{}
	for i, id := range ids {
		if i == pageSize {
			page.NextPageToken = pagination.EncodeIDToken(ids[i-1])
			break
		}
		page.FormInstances = append(page.FormInstances, f.instances[id])
	}
	return page, nil
}

type fakeStructureStore struct {
	versions  map[int64][]domain.StructureVersion
	nextID    int64
	latestErr error
}

func newFakeStructureStore() *fakeStructureStore {
	return &fakeStructureStore{versions: map[int64][]domain.StructureVersion{}, nextID: 500}
}

func (f *fakeStructureStore) CreateStructure(_ context.Context, structure domain.Structure, schema, layout json.RawMessage) (domain.StructureVersion, error) {
	f.nextID++
	structureID := f.nextID
	f.versions[structureID] = nil
	return f.AddStructureVersion(context.Background(), structureID, schema, layout)
}

func (f *fakeStructureStore) AddStructureVersion(_ context.Context, structureID int64, schema, layout json.RawMessage) (domain.StructureVersion, error) {
	existing, ok := f.versions[structureID]
	if !ok {
		return domain.StructureVersion{}, storage.ErrNotFound
	}
	f.nextID++
	version := domain.StructureVersion{
		ID:          f.nextID,
		StructureID: structureID,
		Version:     len(existing) + 1,
		Schema:      schema,
		Layout:      layout,
		CreatedAt:   time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC),
	}
	f.versions[structureID] = append(existing, version)
	return version, nil
}

func (f *fakeStructureStore) LatestStructureVersion(_ context.Context, structureID int64) (domain.StructureVersion, error) {
	if f.latestErr != nil {
		return domain.StructureVersion{}, f.latestErr
	}
	versions := f.versions[structureID]
	if len(versions) == 0 {
		return domain.StructureVersion{}, storage.ErrNotFound
	}
	return versions[len(versions)-1], nil
}

type fakePermissionStore struct {
	grants   map[domain.PermissionKey]domain.PermissionGrant
	fetchErr error
	saveErr  error
	saves    []domain.PermissionGrant
}

func newFakePermissionStore() *fakePermissionStore {
	return &fakePermissionStore{grants: map[domain.PermissionKey]domain.PermissionGrant{}}
}

func (f *fakePermissionStore) FetchResourcePermission(_ context.Context, key domain.PermissionKey) (domain.PermissionGrant, error) {
	if f.fetchErr != nil {
		return domain.PermissionGrant{}, f.fetchErr
	}
	grant, ok := f.grants[key]
	if !ok {
		return domain.PermissionGrant{}, storage.ErrNotFound
	}
	grant.Actions = append([]string(nil), grant.Actions...)
	return grant, nil
}

func (f *fakePermissionStore) SaveResourcePermission(_ context.Context, grant domain.PermissionGrant) (domain.PermissionGrant, error) {
	f.saves = append(f.saves, grant)
	if f.saveErr != nil {
		return domain.PermissionGrant{}, f.saveErr
	}
	f.grants[grant.PermissionKey] = grant
	return grant, nil
}

type fakeRoleStore struct {
	roles  map[string]domain.Role
	nextID int64
	getErr error
}

func newFakeRoleStore() *fakeRoleStore {
	return &fakeRoleStore{roles: map[string]domain.Role{}, nextID: 10}
}

func roleKey(companyID int64, name string) string {
	return strconv.FormatInt(companyID, 10) + "/" + name
}

func (f *fakeRoleStore) GetRole(_ context.Context, companyID int64, name string) (domain.Role, error) {
	if f.getErr != nil {
		return domain.Role{}, f.getErr
	}
	role, ok := f.roles[roleKey(companyID, name)]
	if !ok {
		return domain.Role{}, storage.ErrNotFound
	}
	return role, nil
}

func (f *fakeRoleStore) EnsureRole(ctx context.Context, companyID int64, name string) (domain.Role, error) {
	if role, ok := f.roles[roleKey(companyID, name)]; ok {
		return role, nil
	}
	f.nextID++
	role := domain.Role{ID: f.nextID, CompanyID: companyID, Name: name}
	f.roles[roleKey(companyID, name)] = role
	return role, nil
}

type fixture struct {
	forms       *fakeFormStore
	structures  *fakeStructureStore
	permissions *fakePermissionStore
	roles       *fakeRoleStore
	service     *Service
}

func newFixture() *fixture {
	f := &fixture{
		forms:       newFakeFormStore(),
		structures:  newFakeStructureStore(),
		permissions: newFakePermissionStore(),
		roles:       newFakeRoleStore(),
	}
	f.service = NewService(Stores{
		Forms:       f.forms,
		Structures:  f.structures,
		Permissions: f.permissions,
		Roles:       f.roles,
	})
	return f
}
