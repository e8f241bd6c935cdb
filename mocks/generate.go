package mocks

//go:generate mockgen -destination=./mock_broker.go -package=mocks github.com/quantrail-lab/quantrail/internal/broker Broker
//go:generate mockgen -destination=./mock_notifier.go -package=mocks github.com/quantrail-lab/quantrail/internal/notifier Notifier
