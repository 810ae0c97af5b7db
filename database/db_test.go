package database

import (
	"testing"

	"go.mongodb.org/mongo-driver/bson"
)

func TestTransactionsSupported(t *testing.T) {
	tests := []struct {
		name  string
		hello bson.M
		want  bool
	}{
		{name: "replica set member", hello: bson.M{"isWritablePrimary": true, "setName": "rs0"}, want: true},
		{name: "mongos", hello: bson.M{"isWritablePrimary": true, "msg": "isdbgrid"}, want: true},
		{name: "standalone", hello: bson.M{"isWritablePrimary": true}, want: false},
		{name: "empty set name", hello: bson.M{"setName": ""}, want: false},
	}
	for _, tt := range tests {
		if got := transactionsSupported(tt.hello); got != tt.want {
			t.Errorf("%s: transactionsSupported() = %v, want %v", tt.name, got, tt.want)
		}
	}
}
