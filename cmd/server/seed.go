package main

import (
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/class-booking/internal/middleware"
	"github.com/iliyamo/class-booking/internal/model"
	"github.com/iliyamo/class-booking/internal/repository/memory"
)

// seedDemo fills the in-memory store with a few classes and accounts so a
// local run has something to book. Users 1-3 are customers, 100 is admin.
func seedDemo(st *memory.Store, now time.Time) {
	day := now.Truncate(time.Hour).Add(24 * time.Hour)
	classes := []model.Session{
		{ID: 1, Title: "Knife Skills 101", Capacity: 2, StartAt: day.Add(10 * time.Hour), Price: 50000},
		{ID: 2, Title: "Homemade Pasta", Capacity: 8, StartAt: day.Add(34 * time.Hour), Price: 65000},
		{ID: 3, Title: "Kimchi Workshop", Capacity: 12, StartAt: day.Add(58 * time.Hour), Price: 40000},
	}
	for _, s := range classes {
		s.CreatedAt, s.UpdatedAt = now, now
		st.AddSession(s)
	}
	for _, id := range []uint64{1, 2, 3} {
		st.AddUser(model.User{ID: id, Role: model.RoleCustomer, IsActive: true})
		st.SetPoints(id, 5000)
	}
	st.AddUser(model.User{ID: 100, Role: model.RoleAdmin, IsActive: true})
	st.AddCoupon(model.Coupon{UserID: 1, Type: model.CouponPercent, Value: 10, CreatedAt: now})
}

// logDemoTokens prints day-long bearer tokens for the seeded accounts.
func logDemoTokens(secret string, lg *zap.Logger) {
	accounts := []struct {
		id   uint64
		role string
	}{{1, model.RoleCustomer}, {2, model.RoleCustomer}, {100, model.RoleAdmin}}
	for _, a := range accounts {
		tok, err := middleware.SignAccessToken(secret, a.id, a.role, 24*time.Hour)
		if err != nil {
			lg.Warn("demo token", zap.Uint64("user_id", a.id), zap.Error(err))
			continue
		}
		lg.Info("demo token", zap.Uint64("user_id", a.id), zap.String("role", a.role), zap.String("token", tok.Token))
	}
}
