package kv

import (
	"encoding/binary"
	"time"
)

var (
	merchantPrefix    = []byte("/merchants/")
	transactionPrefix = []byte("/transactions/")
	createdPrefix     = []byte("/created/")
	byMerchantPrefix  = []byte("/by-merchant/")
	expiryPrefix      = []byte("/expiry/")
)

const timestampSize = 12

func MerchantKey(id string) (key []byte) {
	return concat(merchantPrefix, []byte(id))
}

func TransactionKey(id string) (key []byte) {
	return concat(transactionPrefix, []byte(id))
}

// CreatedKey indexes every transaction by creation time
func CreatedKey(at time.Time, id string) (key []byte) {
	return concat(createdPrefix, Timestamp(at), []byte(id))
}

// MerchantPrefix is the prefix shared by all MerchantIndexKey of merchantID
func MerchantPrefix(merchantID string) (prefix []byte) {
	return concat(byMerchantPrefix, []byte(merchantID), []byte{0})
}

// MerchantIndexKey indexes the transactions of a merchant by creation time
func MerchantIndexKey(merchantID string, at time.Time, id string) (key []byte) {
	return concat(MerchantPrefix(merchantID), Timestamp(at), []byte(id))
}

// ExpiryKey indexes PENDING transactions by deadline. Removed on the terminal transition.
func ExpiryKey(at time.Time, id string) (key []byte) {
	return concat(expiryPrefix, Timestamp(at), []byte(id))
}

// Timestamp encodes t so that byte order matches time order: unix seconds
// with the sign bit flipped followed by the nanoseconds, both big endian.
func Timestamp(t time.Time) (b []byte) {
	b = make([]byte, timestampSize)
	binary.BigEndian.PutUint64(b, uint64(t.Unix())^(1<<63))
	binary.BigEndian.PutUint32(b[8:], uint32(t.Nanosecond()))
	return b
}

func ParseTimestamp(b []byte) (t time.Time) {
	seconds := int64(binary.BigEndian.Uint64(b) ^ (1 << 63))
	nanos := int64(binary.BigEndian.Uint32(b[8:]))
	return time.Unix(seconds, nanos).UTC()
}

func concat(parts ...[]byte) (key []byte) {
	var size int
	for _, part := range parts {
		size += len(part)
	}
	key = make([]byte, 0, size)
	for _, part := range parts {
		key = append(key, part...)
	}
	return key
}
