package memory

import (
	"context"
	"sort"

	"github.com/Freeeeeet/appointment_booking/internal/apperr"
	"github.com/Freeeeeet/appointment_booking/internal/model"
)

type UserRepository struct {
	s *Store
}

func (r *UserRepository) Create(ctx context.Context, u *model.User) error {
	defer r.s.lock(ctx)()
	if err := r.s.injected("users.create"); err != nil {
		return err
	}
	for _, other := range r.s.d.users {
		if other.Email == u.Email {
			return apperr.New(apperr.CodeConflict, "email is already registered")
		}
	}

	u.ID = r.s.nextID()
	u.CreatedAt = r.s.now()
	u.UpdatedAt = u.CreatedAt
	r.s.d.users[u.ID] = *u
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*model.User, error) {
	defer r.s.lock(ctx)()
	if err := r.s.injected("users.get"); err != nil {
		return nil, err
	}
	u, ok := r.s.d.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	defer r.s.lock(ctx)()
	if err := r.s.injected("users.get"); err != nil {
		return nil, err
	}
	for _, u := range r.s.d.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, nil
}

func (r *UserRepository) GetByIDs(ctx context.Context, ids []int64) (map[int64]*model.User, error) {
	defer r.s.lock(ctx)()
	if err := r.s.injected("users.get"); err != nil {
		return nil, err
	}
	result := make(map[int64]*model.User, len(ids))
	for _, id := range ids {
		if u, ok := r.s.d.users[id]; ok {
			result[id] = &u
		}
	}
	return result, nil
}

func (r *UserRepository) Update(ctx context.Context, u *model.User) error {
	defer r.s.lock(ctx)()
	if err := r.s.injected("users.update"); err != nil {
		return err
	}
	current, ok := r.s.d.users[u.ID]
	if !ok {
		return apperr.New(apperr.CodeNotFound, "user not found")
	}

	// email, роль и пароль через Update не меняются
	u.Email = current.Email
	u.Role = current.Role
	u.PasswordHash = current.PasswordHash
	u.AddedBy = current.AddedBy
	u.CreatedAt = current.CreatedAt
	u.UpdatedAt = r.s.now()
	r.s.d.users[u.ID] = *u
	return nil
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id int64, hash string) error {
	defer r.s.lock(ctx)()
	if err := r.s.injected("users.update"); err != nil {
		return err
	}
	u, ok := r.s.d.users[id]
	if !ok {
		return apperr.New(apperr.CodeNotFound, "user not found")
	}
	u.PasswordHash = hash
	u.UpdatedAt = r.s.now()
	r.s.d.users[id] = u
	return nil
}

func (r *UserRepository) Delete(ctx context.Context, id int64) (bool, error) {
	defer r.s.lock(ctx)()
	if err := r.s.injected("users.delete"); err != nil {
		return false, err
	}
	if _, ok := r.s.d.users[id]; !ok {
		return false, nil
	}
	delete(r.s.d.users, id)

	// как ON DELETE CASCADE в схеме
	for sid, slot := range r.s.d.slots {
		if slot.TeacherID == id {
			delete(r.s.d.slots, sid)
		}
	}
	for aid, a := range r.s.d.appointments {
		if a.TeacherID == id || a.StudentID == id {
			delete(r.s.d.appointments, aid)
		}
	}
	for mid, m := range r.s.d.messages {
		if _, ok := r.s.d.appointments[m.AppointmentID]; !ok || m.SenderID == id {
			delete(r.s.d.messages, mid)
		}
	}
	return true, nil
}

func (r *UserRepository) List(ctx context.Context, filter model.UserFilter) ([]*model.User, error) {
	defer r.s.lock(ctx)()
	if err := r.s.injected("users.list"); err != nil {
		return nil, err
	}

	var result []*model.User
	for _, u := range r.s.d.users {
		u := u
		if filter.Role != "" && u.Role != filter.Role {
			continue
		}
		if filter.Status != "" && u.Status != filter.Status {
			continue
		}
		result = append(result, &u)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Name != result[j].Name {
			return result[i].Name < result[j].Name
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}
