package services

import (
	"github.com/recipe-app/apiserver/internal/services/servicestest"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"golang.org/x/crypto/bcrypt"
)

func newTestLogger() logrus.FieldLogger {
	logger, _ := test.NewNullLogger()
	return logger
}

func newTestUserService(repo UserRepository) *UserService {
	svc := NewUserService(repo, 5)
	svc.hashCost = bcrypt.MinCost
	return svc
}

func newFakeUserRepo() *servicestest.UserRepo {
	return servicestest.NewUserRepo()
}

func newFakeTokenRepo() *servicestest.TokenRepo {
	return servicestest.NewTokenRepo()
}
