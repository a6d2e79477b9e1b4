package utils

import (
	"crypto/md5"
	"encoding/binary"
	"encoding/hex"
	"math"

	"github.com/TIANLI0/StrokeCut/model"
)

// BytesMD5 计算字节数组MD5
func BytesMD5(data []byte) string {
	hash := md5.New()
	hash.Write(data)
	return hex.EncodeToString(hash.Sum(nil))
}

// StrokeKey 由照片指纹和笔画坐标生成抠图结果的缓存键
func StrokeKey(photoMD5 string, points []model.Point) string {
	hash := md5.New()
	hash.Write([]byte(photoMD5))
	var buf [8]byte
	for _, p := range points {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(p.X))
		hash.Write(buf[:])
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(p.Y))
		hash.Write(buf[:])
	}
	return hex.EncodeToString(hash.Sum(nil))
}
