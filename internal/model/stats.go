package model

type SlotStats struct {
	Total       int `json:"total"`
	Available   int `json:"available"`
	Booked      int `json:"booked"`
	FullyBooked int `json:"fully_booked"`
	Cancelled   int `json:"cancelled"`
	Completed   int `json:"completed"`
}

// Add учитывает n слотов со статусом status
func (s *SlotStats) Add(status SlotStatus, n int) {
	s.Total += n
	switch status {
	case SlotStatusAvailable:
		s.Available += n
	case SlotStatusBooked:
		s.Booked += n
	case SlotStatusFullyBooked:
		s.FullyBooked += n
	case SlotStatusCancelled:
		s.Cancelled += n
	case SlotStatusCompleted:
		s.Completed += n
	}
}

type AppointmentStats struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Approved  int `json:"approved"`
	Cancelled int `json:"cancelled"`
	Completed int `json:"completed"`
}

func (s *AppointmentStats) Add(status AppointmentStatus) {
	s.Total++
	switch status {
	case AppointmentStatusPending:
		s.Pending++
	case AppointmentStatusApproved:
		s.Approved++
	case AppointmentStatusCancelled:
		s.Cancelled++
	case AppointmentStatusCompleted:
		s.Completed++
	}
}

type MessageStats struct {
	Total    int `json:"total"`
	Today    int `json:"today"`
	ThisWeek int `json:"this_week"`
}

type UserStats struct {
	Students         int `json:"students"`
	PendingStudents  int `json:"pending_students"`
	ApprovedStudents int `json:"approved_students"`
	RejectedStudents int `json:"rejected_students"`
	Teachers         int `json:"teachers"`
	Admins           int `json:"admins"`
	TotalUsers       int `json:"total_users"`
}

func (s *UserStats) Add(u *User) {
	switch u.Role {
	case RoleStudent:
		s.Students++
		switch {
		case u.Status == UserStatusPending:
			s.PendingStudents++
		case u.Status == UserStatusRejected:
			s.RejectedStudents++
		case u.Approved:
			s.ApprovedStudents++
		}
	case RoleTeacher:
		if u.Status != UserStatusInactive {
			s.Teachers++
		}
	case RoleAdmin:
		s.Admins++
	}
	s.TotalUsers = s.ApprovedStudents + s.Teachers
}

type SystemStats struct {
	Users        UserStats        `json:"users"`
	Slots        SlotStats        `json:"slots"`
	Appointments AppointmentStats `json:"appointments"`
	Messages     MessageStats     `json:"messages"`
}
