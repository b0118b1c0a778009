package mocks

//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name Repository --dir ../domain/credential --output domain/credential --outpkg credentialmock --filename repository_mock.go
//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name Repository --dir ../domain/racestats --output domain/racestats --outpkg racestatsmock --filename repository_mock.go
//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name Repository --dir ../domain/jobscheduler --output domain/jobscheduler --outpkg jobschedulermock --filename repository_mock.go
