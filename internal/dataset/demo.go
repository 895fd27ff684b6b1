package dataset

// Demo returns the ten-transaction phone accessory basket used by the
// quickstart command.
func Demo() *Dataset {
	ds := New("demo")
	ds.Add("1", "手机壳", "充电宝", "数据线")
	ds.Add("2", "手机壳", "数据线")
	ds.Add("3", "充电宝", "耳机")
	ds.Add("4", "手机壳", "耳机", "数据线")
	ds.Add("5", "充电宝", "手机壳")
	ds.Add("6", "数据线", "耳机")
	ds.Add("7", "手机壳", "充电宝", "数据线")
	ds.Add("8", "手机壳", "耳机")
	ds.Add("9", "充电宝", "数据线")
	ds.Add("10", "手机壳", "数据线")
	return ds
}
